package metrics

import "time"

// Arbitration outcome label values.
const (
	OutcomeVerified     = "verified"
	OutcomeDisagreement = "disagreement"
)

// CaseMetrics holds the metrics recorded while evaluating cases.
type CaseMetrics struct {
	registry *Registry

	EvaluationsTotal      *Counter
	ContradictionsTotal   *Counter
	BehaviourSignalsTotal *Counter
	MetadataFlagsTotal    *Counter
	DegradedSectionsTotal *Counter
	ArchivedReportsTotal  *Counter
	BranchFailuresTotal   *Counter
	VerifiedTotal         *Counter
	DisagreementTotal     *Counter

	LastRiskScore *Gauge

	EvaluationDuration  *Histogram
	ArbitrationDuration *Histogram
	RiskScores          *Histogram
}

// NewCaseMetrics creates and registers all case metrics. A nil registry
// means a fresh "casetrace" registry.
func NewCaseMetrics(registry *Registry) *CaseMetrics {
	if registry == nil {
		registry = NewRegistry("casetrace", "")
	}

	arbitrations := func(outcome string) *Counter {
		return registry.RegisterCounter("arbitrations_total",
			"Consensus arbitrations by outcome", Labels{"outcome": outcome})
	}

	return &CaseMetrics{
		registry: registry,

		EvaluationsTotal: registry.RegisterCounter("evaluations_total",
			"Case summaries evaluated", nil),
		ContradictionsTotal: registry.RegisterCounter("contradictions_total",
			"Contradiction records produced", nil),
		BehaviourSignalsTotal: registry.RegisterCounter("behaviour_signals_total",
			"Behaviour signals produced", nil),
		MetadataFlagsTotal: registry.RegisterCounter("metadata_flags_total",
			"Metadata red flags produced", nil),
		DegradedSectionsTotal: registry.RegisterCounter("degraded_sections_total",
			"Malformed summary sections replaced by empty collections", nil),
		ArchivedReportsTotal: registry.RegisterCounter("archived_reports_total",
			"Reports written to the archive", nil),
		BranchFailuresTotal: registry.RegisterCounter("branch_failures_total",
			"Interpretation branches that timed out, were cancelled or failed", nil),
		VerifiedTotal:     arbitrations(OutcomeVerified),
		DisagreementTotal: arbitrations(OutcomeDisagreement),

		LastRiskScore: registry.RegisterGauge("last_risk_score",
			"Risk score of the most recent evaluation", nil),

		EvaluationDuration: registry.RegisterHistogram("evaluation_duration_seconds",
			"Time spent in deterministic evaluation", nil, DurationBuckets),
		ArbitrationDuration: registry.RegisterHistogram("arbitration_duration_seconds",
			"Time spent waiting on the three interpretation branches", nil, DurationBuckets),
		RiskScores: registry.RegisterHistogram("risk_score",
			"Distribution of risk scores", nil, ScoreBuckets),
	}
}

// Registry returns the underlying registry.
func (m *CaseMetrics) Registry() *Registry {
	return m.registry
}

// EvaluationStats are the counts of one evaluation.
type EvaluationStats struct {
	Contradictions int
	Signals        int
	Flags          int
	Degraded       int
	Risk           int
}

// RecordEvaluation records one deterministic evaluation. Safe on a nil
// receiver.
func (m *CaseMetrics) RecordEvaluation(s EvaluationStats, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.Inc()
	m.ContradictionsTotal.Add(uint64(max(s.Contradictions, 0)))
	m.BehaviourSignalsTotal.Add(uint64(max(s.Signals, 0)))
	m.MetadataFlagsTotal.Add(uint64(max(s.Flags, 0)))
	m.DegradedSectionsTotal.Add(uint64(max(s.Degraded, 0)))
	m.LastRiskScore.Set(int64(s.Risk))
	m.RiskScores.Observe(float64(s.Risk))
	m.EvaluationDuration.ObserveDuration(d)
}

// RecordArbitration records one arbitration. Safe on a nil receiver.
func (m *CaseMetrics) RecordArbitration(verified bool, failures int, d time.Duration) {
	if m == nil {
		return
	}
	if verified {
		m.VerifiedTotal.Inc()
	} else {
		m.DisagreementTotal.Inc()
	}
	m.BranchFailuresTotal.Add(uint64(max(failures, 0)))
	m.ArbitrationDuration.ObserveDuration(d)
}

// RecordArchived records a report written to the archive. Safe on a nil
// receiver.
func (m *CaseMetrics) RecordArchived() {
	if m == nil {
		return
	}
	m.ArchivedReportsTotal.Inc()
}
