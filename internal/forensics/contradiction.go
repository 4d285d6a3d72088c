package forensics

import "casetrace/internal/casefile"

const (
	msgDirectContradiction = "Direct contradiction"
	msgTimelineImpossible  = "Event listed after an earlier-timed event"
)

// DetectContradictions scans statements pairwise and the timeline in its
// supplied order.
//
// Statement conflicts come first, in (i, j) order with i < j, so a pair is
// never reported twice. Timeline records follow in detection order. The
// timeline check deliberately uses the order the caller supplied, not
// chronological order. Placeholders left by the decoder for malformed
// entries never take part, so refs always index the caller's arrays.
func DetectContradictions(s *casefile.Summary) []Contradiction {
	out := []Contradiction{}
	if s == nil {
		return out
	}

	st := s.Statements
	for i := 0; i < len(st); i++ {
		for j := i + 1; j < len(st); j++ {
			if st[i].Malformed || st[j].Malformed {
				continue
			}
			if st[i].Claim == st[j].Claim && st[i].Value != st[j].Value {
				out = append(out, Contradiction{
					Kind:     KindStatementConflict,
					Refs:     []int{i, j},
					Severity: SeverityStatementConflict,
					Message:  msgDirectContradiction,
				})
			}
		}
	}

	tl := s.Timeline
	for i := 1; i < len(tl); i++ {
		if tl[i].Time.Before(tl[i-1].Time) {
			out = append(out, Contradiction{
				Kind:     KindTimelineImpossible,
				Refs:     []int{i - 1, i},
				Severity: SeverityTimelineImpossible,
				Message:  msgTimelineImpossible,
			})
		}
	}

	return out
}

// WitnessReliability grades each actor by the number of statements marked
// inconsistent. Actors appear in order of first statement; statements
// without an actor are ignored.
func WitnessReliability(statements []casefile.Statement) []WitnessScore {
	out := []WitnessScore{}
	index := make(map[string]int)

	for _, st := range statements {
		if st.Actor == "" {
			continue
		}
		i, ok := index[st.Actor]
		if !ok {
			i = len(out)
			index[st.Actor] = i
			out = append(out, WitnessScore{Actor: st.Actor})
		}
		if st.Consistent != nil && !*st.Consistent {
			out[i].Inconsistencies++
		}
	}

	for i := range out {
		n := out[i].Inconsistencies
		out[i].InconsistencyScore = n * 12
		switch {
		case n == 0:
			out[i].Reliability = ReliabilityHigh
		case n < 2:
			out[i].Reliability = ReliabilityMedium
		default:
			out[i].Reliability = ReliabilityLow
		}
	}
	return out
}
