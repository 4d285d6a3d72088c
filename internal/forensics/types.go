// Package forensics implements the deterministic case analyzers: contradiction
// detection, timeline validation, behaviour classification, metadata red
// flags, threat scanning and risk aggregation.
//
// Every function here is a pure function of its arguments. Inputs are never
// modified and results are freshly allocated, so analyzers may run
// concurrently over the same summary without locks.
package forensics

import "casetrace/internal/casefile"

// ContradictionKind categorizes a detected contradiction.
type ContradictionKind string

const (
	KindStatementConflict  ContradictionKind = "statement_conflict"
	KindTimelineImpossible ContradictionKind = "timeline_impossible"
)

// Severities for contradiction records.
const (
	SeverityStatementConflict  = 100
	SeverityTimelineImpossible = 90
)

// Contradiction is a logical conflict between two statements or two
// adjacent timeline entries. Refs holds the input indices involved.
type Contradiction struct {
	Kind     ContradictionKind `json:"kind"`
	Refs     []int             `json:"refs"`
	Severity int               `json:"severity"`
	Message  string            `json:"message"`
}

// ValidatedTimeline is the output of ValidateTimeline.
type ValidatedTimeline struct {
	Ordered    []casefile.Event `json:"ordered"`
	Gaps       []Gap            `json:"gaps"`
	Impossible []casefile.Event `json:"impossible"`
}

// Gap flags a position in the ordered timeline whose event was supplied
// earlier than its predecessor's.
type Gap struct {
	Index int    `json:"index"`
	Issue string `json:"issue"`
}

// GapOutOfOrder is the issue label for reordered events.
const GapOutOfOrder = "out-of-order"

// SignalOrigin records which classifier path produced a signal.
type SignalOrigin string

const (
	OriginLexicon SignalOrigin = "lexicon"
	OriginTyped   SignalOrigin = "typed"
)

// BehaviourSignal is one classified behaviour observation.
type BehaviourSignal struct {
	Type        casefile.BehaviourType `json:"type"`
	Severity    int                    `json:"severity"`
	SourceIndex int                    `json:"sourceIndex"`
	Origin      SignalOrigin           `json:"origin"`
	Phrase      string                 `json:"phrase,omitempty"`
}

// MetadataFlag is a metadata finding recognised by the red-flag table.
type MetadataFlag struct {
	Type        string `json:"type"`
	Severity    int    `json:"severity"`
	SourceIndex int    `json:"sourceIndex"`
}

// WitnessScore summarises how often one actor's statements were marked
// inconsistent.
type WitnessScore struct {
	Actor              string      `json:"actor"`
	Inconsistencies    int         `json:"inconsistencies"`
	InconsistencyScore int         `json:"inconsistencyScore"`
	Reliability        Reliability `json:"reliability"`
}

// Reliability grades a witness.
type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

// ThreatSeverity grades free-text threat content.
type ThreatSeverity string

const (
	ThreatLow      ThreatSeverity = "LOW"
	ThreatModerate ThreatSeverity = "MODERATE"
	ThreatHigh     ThreatSeverity = "HIGH"
	ThreatCritical ThreatSeverity = "CRITICAL"
)

// ThreatAssessment is the result of ScanThreats.
type ThreatAssessment struct {
	Score      int            `json:"score"`
	Severity   ThreatSeverity `json:"severity"`
	Indicators []string       `json:"indicators"`
}
