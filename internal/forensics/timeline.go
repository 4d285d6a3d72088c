package forensics

import (
	"sort"

	"casetrace/internal/casefile"
)

// UnknownSource labels ordered events that arrived without a source.
const UnknownSource = "unknown"

// ValidateTimeline orders events by time and reports reordering.
//
// Ordered is a stable ascending sort, so equal (or unparseable) times keep
// their supplied order. A gap is reported at every position k of Ordered
// whose event was supplied before the event at k-1. Impossible passes
// through entries the caller flagged impossible, in input order.
// Malformed placeholders are left out of every view.
func ValidateTimeline(events []casefile.Event) ValidatedTimeline {
	vt := ValidatedTimeline{
		Ordered:    make([]casefile.Event, 0, len(events)),
		Gaps:       []Gap{},
		Impossible: []casefile.Event{},
	}
	if len(events) == 0 {
		return vt
	}

	perm := make([]int, 0, len(events))
	for i, ev := range events {
		if !ev.Malformed {
			perm = append(perm, i)
		}
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return events[perm[a]].Time.Before(events[perm[b]].Time)
	})

	for k, idx := range perm {
		ev := events[idx]
		if ev.Source == "" {
			ev.Source = UnknownSource
		}
		vt.Ordered = append(vt.Ordered, cloneEvent(ev))
		if k > 0 && idx < perm[k-1] {
			vt.Gaps = append(vt.Gaps, Gap{Index: k, Issue: GapOutOfOrder})
		}
	}

	for _, ev := range events {
		if ev.Impossible {
			vt.Impossible = append(vt.Impossible, cloneEvent(ev))
		}
	}
	return vt
}

func cloneEvent(ev casefile.Event) casefile.Event {
	if ev.Agreed != nil {
		v := *ev.Agreed
		ev.Agreed = &v
	}
	return ev
}
