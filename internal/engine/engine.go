// Package engine assembles the per-case report from the forensic
// analyses, the jurisdiction resolver, the overlay table and, on request,
// consensus arbitration.
//
// An Engine holds configuration only. Evaluate is a pure function of its
// input: the same summary always yields the same report and digest.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"casetrace/internal/casefile"
	"casetrace/internal/consensus"
	"casetrace/internal/forensics"
	"casetrace/internal/jurisdiction"
	"casetrace/internal/metrics"
	"casetrace/internal/overlay"
)

// SafetyNotice is attached to every report.
const SafetyNotice = "This is supportive forensic interpretation, not legal advice."

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// Overlays is the overlay table; nil means overlay.Builtin().
	Overlays *overlay.Table
	// Select limits evaluation to the named overlays and their
	// dependencies. Empty means all.
	Select     []string
	Classifier *forensics.Classifier
	Arbitrator *consensus.Arbitrator
	Logger     *slog.Logger
	Metrics    *metrics.CaseMetrics
}

// Engine evaluates case summaries.
type Engine struct {
	overlays   *overlay.Table
	classifier *forensics.Classifier
	arbitrator *consensus.Arbitrator
	logger     *slog.Logger
	metrics    *metrics.CaseMetrics
}

// New validates opts and returns an Engine. An unknown overlay name in
// Select is an error.
func New(opts Options) (*Engine, error) {
	tbl := opts.Overlays
	if tbl == nil {
		tbl = overlay.Builtin()
	}
	tbl, err := tbl.Select(opts.Select)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	arb := opts.Arbitrator
	if arb == nil {
		arb = &consensus.Arbitrator{Logger: logger}
	}

	return &Engine{
		overlays:   tbl,
		classifier: opts.Classifier,
		arbitrator: arb,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// Evaluate runs every deterministic analysis over summary. A nil summary
// or missing sections produce empty collections, never an error.
func (e *Engine) Evaluate(summary *casefile.Summary) *Report {
	start := time.Now()
	s := summary
	if s == nil {
		s = &casefile.Summary{}
	}

	contradictions := forensics.DetectContradictions(s)
	signals := e.classifier.Classify(s.Behaviour)
	flags := forensics.ClassifyMetadata(s.MetadataFindings)
	risk := forensics.AggregateRisk(contradictions, signals, s.MetadataFindings)
	sig := deriveSignals(s, contradictions, signals, risk)

	r := &Report{
		CaseHash:       s.Hash,
		Timeline:       forensics.ValidateTimeline(s.Timeline),
		Contradictions: contradictions,
		Witnesses:      forensics.WitnessReliability(s.Statements),
		Behaviour:      signals,
		Metadata:       flags,
		Threat:         forensics.ScanThreats(behaviourText(s.Behaviour)),
		Risk:           risk,
		Tier:           risk.Tier(),
		Jurisdiction:   jurisdiction.Resolve(s.Jurisdiction),
		Routes:         jurisdiction.Routes(s.Jurisdiction),
		Signals:        sig,
		Overlays:       e.overlays.EvaluateOrdered(sig),
		Legal:          mapLegal(s, contradictions, risk),
		Degraded:       append([]string{}, s.Degraded...),
		Safety:         SafetyNotice,
	}

	d := time.Since(start)
	e.metrics.RecordEvaluation(metrics.EvaluationStats{
		Contradictions: len(r.Contradictions),
		Signals:        len(r.Behaviour),
		Flags:          len(r.Metadata),
		Degraded:       len(r.Degraded),
		Risk:           int(r.Risk),
	}, d)
	e.logger.Debug("case evaluated",
		"case_hash", s.Hash,
		"risk", int(r.Risk),
		"tier", string(r.Tier),
		"contradictions", len(r.Contradictions),
		"signals", len(r.Behaviour),
		"overlays", len(r.Overlays),
		"degraded", len(r.Degraded),
		"duration", d,
	)
	return r
}

// EvaluateWithConsensus evaluates summary and attaches the result of
// arbitrating three interpretations of it.
func (e *Engine) EvaluateWithConsensus(ctx context.Context, summary *casefile.Summary) *Report {
	r := e.Evaluate(summary)

	start := time.Now()
	res := e.arbitrator.Arbitrate(ctx, summary)
	r.Consensus = &res

	failures := 0
	for _, f := range []string{res.Failures.A, res.Failures.B, res.Failures.C} {
		if f != "" {
			failures++
		}
	}
	e.metrics.RecordArbitration(res.Agreement, failures, time.Since(start))
	e.logger.DebugContext(ctx, "consensus arbitrated",
		"outcome", string(res.Mode),
		"failures", failures,
	)
	return r
}

// OverlayNames returns the overlays this engine evaluates, in order.
func (e *Engine) OverlayNames() []string {
	return e.overlays.Names()
}

func deriveSignals(s *casefile.Summary, contradictions []forensics.Contradiction, signals []forensics.BehaviourSignal, risk forensics.RiskScore) overlay.Signals {
	sig := overlay.Signals{
		overlay.SignalContradictions:     len(contradictions),
		overlay.SignalStatementConflicts: forensics.CountKind(contradictions, forensics.KindStatementConflict),
		overlay.SignalTimelineImpossible: forensics.CountKind(contradictions, forensics.KindTimelineImpossible),
		overlay.SignalBehaviour:          len(signals),
		overlay.SignalMetadata:           casefile.CountFindings(s.MetadataFindings),
		overlay.SignalTimeline:           casefile.CountEvents(s.Timeline),
		overlay.SignalRisk:               int(risk),
	}

	for _, t := range casefile.BehaviourTypes() {
		sig[overlay.BehaviourKey(string(t))] = 0
	}
	for _, t := range forensics.MetadataFindingTypes() {
		sig[overlay.MetadataKey(t)] = 0
	}
	for _, b := range signals {
		if b.Type != "" {
			sig[overlay.BehaviourKey(string(b.Type))]++
		}
	}
	for _, f := range s.MetadataFindings {
		if f.Type != "" {
			sig[overlay.MetadataKey(f.Type)]++
		}
	}
	return sig
}

func behaviourText(entries []casefile.Behaviour) string {
	parts := make([]string, 0, len(entries))
	for _, b := range entries {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
