package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"casetrace/internal/forensics"
	"casetrace/internal/overlay"
)

// PrintReport writes a human-readable rendering of r to w.
func PrintReport(w io.Writer, r *Report) {
	if r == nil {
		fmt.Fprintln(w, "No report data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                      CASE FORENSIC EVALUATION")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	if r.CaseHash != "" {
		fmt.Fprintf(w, "Case Hash:      %s\n", r.CaseHash)
	}
	fmt.Fprintf(w, "Jurisdiction:   %s (%s)\n", r.Jurisdiction.Name, r.Jurisdiction.Posture)
	fmt.Fprintf(w, "Risk:           %3d  %s  %s\n", int(r.Risk),
		FormatMetricBar(float64(r.Risk), 0, forensics.MaxRisk, 20), strings.ToUpper(string(r.Tier)))
	fmt.Fprintf(w, "Threat:         %3d  %s\n", r.Threat.Score, r.Threat.Severity)
	fmt.Fprintln(w)

	section(w, "CONTRADICTIONS")
	if len(r.Contradictions) == 0 {
		fmt.Fprintln(w, "None detected")
	}
	for i, c := range r.Contradictions {
		fmt.Fprintf(w, "%d. [%s] %s %v: %s\n", i+1, severityMarker(c.Severity), c.Kind, c.Refs, c.Message)
	}
	fmt.Fprintln(w)

	section(w, "TIMELINE")
	for _, ev := range r.Timeline.Ordered {
		fmt.Fprintf(w, "  %-25s %s\n", ev.Time.Raw, ev.Event)
	}
	for _, g := range r.Timeline.Gaps {
		fmt.Fprintf(w, "  gap at %d: %s\n", g.Index, g.Issue)
	}
	fmt.Fprintf(w, "Impossible events: %d\n", len(r.Timeline.Impossible))
	fmt.Fprintln(w)

	section(w, "BEHAVIOUR AND METADATA")
	for _, b := range r.Behaviour {
		fmt.Fprintf(w, "  [%s] %-14s #%d %s\n", severityMarker(b.Severity), b.Type, b.SourceIndex, b.Origin)
	}
	for _, f := range r.Metadata {
		fmt.Fprintf(w, "  [%s] %-14s #%d metadata\n", severityMarker(f.Severity), f.Type, f.SourceIndex)
	}
	for _, ws := range r.Witnesses {
		fmt.Fprintf(w, "  witness %-10s %s (%d inconsistent)\n", ws.Actor, ws.Reliability, ws.Inconsistencies)
	}
	fmt.Fprintln(w)

	if len(r.Overlays) > 0 {
		section(w, "OVERLAYS")
		for _, v := range r.Overlays {
			switch {
			case v.Error != "":
				fmt.Fprintf(w, "  %-22s error: %s\n", v.Name, v.Error)
			case v.Text != "":
				fmt.Fprintf(w, "  %-22s %s\n", v.Name, v.Text)
			case v.Kind == overlay.KindTiered:
				fmt.Fprintf(w, "  %-22s %s (%g)\n", v.Name, v.Label, v.Score)
			default:
				fmt.Fprintf(w, "  %-22s %s\n", v.Name, strings.Join(v.Items, "; "))
			}
		}
		fmt.Fprintln(w)
	}

	section(w, "ROUTING")
	for _, rt := range r.Routes {
		fmt.Fprintf(w, "  %-8s %s\n", rt.Level, rt.Route)
	}
	fmt.Fprintf(w, "Legal: criminal=%s civil=%s fraud=%s jurisdiction=%s\n",
		r.Legal.Criminal, r.Legal.Civil, r.Legal.Fraud, r.Legal.Jurisdiction)
	fmt.Fprintln(w)

	if r.Consensus != nil {
		section(w, "CONSENSUS")
		fmt.Fprintf(w, "Outcome: %s\n", r.Consensus.Mode)
		if r.Consensus.Message != "" {
			fmt.Fprintln(w, r.Consensus.Message)
		}
		fmt.Fprintf(w, "AB=%t AC=%t BC=%t\n", r.Consensus.Matrix.AB, r.Consensus.Matrix.AC, r.Consensus.Matrix.BC)
		fmt.Fprintln(w)
	}

	if len(r.Degraded) > 0 {
		fmt.Fprintf(w, "Degraded input: %s\n\n", strings.Join(r.Degraded, ", "))
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, r.Safety)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", 72))
}

// FormatMetricBar produces an ASCII bar for value within [lo, hi].
func FormatMetricBar(value, lo, hi float64, width int) string {
	if width <= 0 {
		return ""
	}
	if hi <= lo {
		return strings.Repeat("-", width)
	}

	normalized := max(0, min(1, (value-lo)/(hi-lo)))
	filled := int(normalized * float64(width))

	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// severityMarker maps a 0-100 severity to a visual marker.
func severityMarker(severity int) string {
	switch {
	case severity >= 90:
		return "!!!"
	case severity >= 60:
		return " ! "
	default:
		return " i "
	}
}
