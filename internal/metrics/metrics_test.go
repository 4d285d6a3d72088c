package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry("test", "")
	c := r.RegisterCounter("events_total", "Events", nil)
	c.Inc()
	c.Add(4)
	assert.Equal(t, uint64(5), c.Value())
	assert.Equal(t, "test_events_total", c.Name())

	g := r.RegisterGauge("level", "Level", nil)
	g.Set(10)
	g.Add(-3)
	assert.Equal(t, int64(7), g.Value())
}

func TestRegisterReturnsExisting(t *testing.T) {
	r := NewRegistry("test", "sub")
	a := r.RegisterCounter("hits_total", "Hits", Labels{"kind": "a"})
	again := r.RegisterCounter("hits_total", "Hits", Labels{"kind": "a"})
	b := r.RegisterCounter("hits_total", "Hits", Labels{"kind": "b"})

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, "test_sub_hits_total", a.Name())
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("", "")
	h := r.RegisterHistogram("score", "Scores", nil, []float64{50, 10})
	for _, v := range []float64{5, 10, 30, 70} {
		h.Observe(v)
	}
	assert.Equal(t, uint64(4), h.Count())
	assert.Equal(t, 115.0, h.Sum())

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `score_bucket{le="10"} 2`)
	assert.Contains(t, out, `score_bucket{le="50"} 3`)
	assert.Contains(t, out, `score_bucket{le="+Inf"} 4`)
	assert.Contains(t, out, "score_sum 115")
	assert.Contains(t, out, "score_count 4")
}

func TestObserveDuration(t *testing.T) {
	h := newHistogram("d", "", nil, nil)
	h.ObserveDuration(250 * time.Millisecond)
	assert.InDelta(t, 0.25, h.Sum(), 1e-9)
}

func TestWritePrometheusHeadersOncePerName(t *testing.T) {
	m := NewCaseMetrics(nil)
	m.RecordArbitration(true, 0, time.Millisecond)
	m.RecordArbitration(false, 2, time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, m.Registry().WritePrometheus(&buf))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "# TYPE casetrace_arbitrations_total counter"))
	assert.Contains(t, out, `casetrace_arbitrations_total{outcome="verified"} 1`)
	assert.Contains(t, out, `casetrace_arbitrations_total{outcome="disagreement"} 1`)
	assert.Contains(t, out, "casetrace_branch_failures_total 2")

	// output is stable
	var again bytes.Buffer
	require.NoError(t, m.Registry().WritePrometheus(&again))
	assert.Equal(t, out, again.String())
}

func TestRecordEvaluation(t *testing.T) {
	m := NewCaseMetrics(nil)
	m.RecordEvaluation(EvaluationStats{Contradictions: 2, Signals: 1, Flags: 1, Degraded: 0, Risk: 22}, time.Millisecond)
	m.RecordEvaluation(EvaluationStats{Risk: 80}, time.Millisecond)
	m.RecordArchived()

	assert.Equal(t, uint64(2), m.EvaluationsTotal.Value())
	assert.Equal(t, uint64(2), m.ContradictionsTotal.Value())
	assert.Equal(t, uint64(1), m.BehaviourSignalsTotal.Value())
	assert.Equal(t, int64(80), m.LastRiskScore.Value())
	assert.Equal(t, uint64(2), m.RiskScores.Count())
	assert.Equal(t, uint64(1), m.ArchivedReportsTotal.Value())
}

func TestNilCaseMetricsIsNoop(t *testing.T) {
	var m *CaseMetrics
	assert.NotPanics(t, func() {
		m.RecordEvaluation(EvaluationStats{Risk: 1}, time.Second)
		m.RecordArbitration(true, 0, time.Second)
		m.RecordArchived()
	})
}

func TestSnapshotAndJSON(t *testing.T) {
	m := NewCaseMetrics(nil)
	m.RecordEvaluation(EvaluationStats{Risk: 40}, time.Millisecond)

	snap := m.Registry().Snapshot()
	assert.Equal(t, uint64(1), snap["casetrace_evaluations_total"])
	assert.Equal(t, uint64(1), snap["casetrace_risk_score_count"])

	var buf bytes.Buffer
	require.NoError(t, m.Registry().WriteJSON(&buf))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(40), decoded["casetrace_last_risk_score"])
}

func TestReset(t *testing.T) {
	m := NewCaseMetrics(nil)
	m.RecordEvaluation(EvaluationStats{Contradictions: 3, Risk: 30}, time.Millisecond)
	m.Registry().Reset()

	assert.Zero(t, m.EvaluationsTotal.Value())
	assert.Zero(t, m.LastRiskScore.Value())
	assert.Zero(t, m.RiskScores.Count())
	assert.Zero(t, m.RiskScores.Sum())
}

func TestConcurrentUpdates(t *testing.T) {
	m := NewCaseMetrics(nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordEvaluation(EvaluationStats{Signals: 1, Risk: 7}, time.Microsecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), m.EvaluationsTotal.Value())
	assert.Equal(t, uint64(50), m.BehaviourSignalsTotal.Value())
	assert.Equal(t, uint64(50), m.EvaluationDuration.Count())
}

func TestLabelsString(t *testing.T) {
	assert.Equal(t, "", Labels{}.String())
	assert.Equal(t, `{a="1",b="x\"y"}`, Labels{"b": `x"y`, "a": "1"}.String())
	assert.Equal(t, `{a="1",le="5"}`, Labels{"a": "1"}.with("le", "5"))
	assert.Equal(t, `{le="+Inf"}`, Labels(nil).with("le", "+Inf"))
}
