// Package overlay implements configurable interpretive views over the
// signals derived from a case summary.
//
// An overlay is a row in a Table: a weighted score over named signal
// counts, an optional tier label, optional CEL rules that contribute
// labelled items, and an optional text/template narrative. Overlays may
// read the views of other overlays only through an explicit DependsOn
// list; the table evaluates them in dependency layers.
package overlay

import "strings"

// Base signal names. Per-type counts use the "behaviour." and "metadata."
// prefixes, e.g. "behaviour.coercion" or "metadata.mismatched_hash".
const (
	SignalContradictions     = "contradictions"
	SignalBehaviour          = "behaviour"
	SignalMetadata           = "metadata"
	SignalRisk               = "risk"
	SignalTimeline           = "timeline"
	SignalStatementConflicts = "statement_conflicts"
	SignalTimelineImpossible = "timeline_impossible"
	PrefixBehaviour          = "behaviour."
	PrefixMetadata           = "metadata."
)

var baseSignals = []string{
	SignalContradictions,
	SignalBehaviour,
	SignalMetadata,
	SignalRisk,
	SignalTimeline,
	SignalStatementConflicts,
	SignalTimelineImpossible,
}

// Signals are named counts. They are read-only during evaluation.
type Signals map[string]int

// Get returns the count for name, zero when absent.
func (s Signals) Get(name string) int {
	return s[name]
}

// BehaviourKey returns the signal name counting behaviour type t.
func BehaviourKey(t string) string { return PrefixBehaviour + t }

// MetadataKey returns the signal name counting metadata finding type t.
func MetadataKey(t string) string { return PrefixMetadata + t }

// IsSignalName reports whether name is a base signal or a well-formed
// per-type signal.
func IsSignalName(name string) bool {
	for _, b := range baseSignals {
		if name == b {
			return true
		}
	}
	for _, p := range []string{PrefixBehaviour, PrefixMetadata} {
		if rest, ok := strings.CutPrefix(name, p); ok && rest != "" {
			return true
		}
	}
	return false
}

// Kind is the closed set of overlay kinds.
type Kind string

const (
	// KindTiered scores weighted signals and labels the score by threshold.
	KindTiered Kind = "tiered"
	// KindRules collects the labels of the CEL rules that hold.
	KindRules Kind = "rules"
	// KindNarrative renders a template.
	KindNarrative Kind = "narrative"
)

func (k Kind) valid() bool {
	switch k {
	case KindTiered, KindRules, KindNarrative:
		return true
	}
	return false
}

// Threshold labels scores at or above Cutoff.
type Threshold struct {
	Cutoff float64 `yaml:"cutoff" json:"cutoff"`
	Label  string  `yaml:"label" json:"label"`
}

// Rule contributes Label when the CEL expression When holds.
type Rule struct {
	When  string `yaml:"when" json:"when"`
	Label string `yaml:"label" json:"label"`
}

// Definition is one overlay row.
type Definition struct {
	Name       string             `yaml:"name" json:"name"`
	Kind       Kind               `yaml:"kind" json:"kind"`
	Weights    map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
	Thresholds []Threshold        `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Rules      []Rule             `yaml:"rules,omitempty" json:"rules,omitempty"`
	// FirstMatch keeps only the first rule that holds.
	FirstMatch bool `yaml:"first_match,omitempty" json:"firstMatch,omitempty"`
	// Fallback is the single item reported when no rule holds.
	Fallback  string   `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Template  string   `yaml:"template,omitempty" json:"template,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
}

// View is the evaluated form of an overlay.
type View struct {
	Name  string   `json:"name"`
	Kind  Kind     `json:"kind"`
	Score float64  `json:"score"`
	Label string   `json:"label,omitempty"`
	Items []string `json:"items"`
	Text  string   `json:"text,omitempty"`
	// Error records a rule or template failure for this view only.
	Error string `json:"error,omitempty"`
}
