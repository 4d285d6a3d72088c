// Package metrics provides Prometheus-compatible metrics for casetrace.
//
// Features:
//   - Counters, gauges and histograms with static labels
//   - Prometheus text and JSON exposition, sorted for stable output
//   - Thread-safe operations
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// TypeCounter is a monotonically increasing counter.
	TypeCounter MetricType = iota
	// TypeGauge is a value that can go up and down.
	TypeGauge
	// TypeHistogram is a distribution of values.
	TypeHistogram
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels.
type Labels map[string]string

// String returns labels in exposition form, keys sorted.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s=%q`, k, l[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// with returns the label string with one extra pair appended.
func (l Labels) with(key, value string) string {
	s := l.String()
	pair := fmt.Sprintf(`%s=%q`, key, value)
	if s == "" {
		return "{" + pair + "}"
	}
	return s[:len(s)-1] + "," + pair + "}"
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels Labels
	value  atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current value.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels Labels
	value  atomic.Int64
}

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Add adds v to the gauge.
func (g *Gauge) Add(v int64) { g.value.Add(v) }

// Value returns the current value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// DurationBuckets are buckets for duration histograms (in seconds).
var DurationBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// ScoreBuckets are buckets for 0-100 scores.
var ScoreBuckets = []float64{0, 10, 25, 50, 75, 90, 100}

func newHistogram(name, help string, labels Labels, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DurationBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)

	return &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	// first bucket whose upper bound is >= v
	h.counts[sort.SearchFloat64s(h.buckets, v)]++
}

// ObserveDuration records a duration in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// cumulative returns the cumulative bucket counts, +Inf last.
func (h *Histogram) cumulative() []uint64 {
	out := make([]uint64, len(h.counts))
	var acc uint64
	for i, c := range h.counts {
		acc += c
		out[i] = acc
	}
	return out
}

// Registry holds registered metrics. Metrics are keyed by full name and
// labels, so one name may carry several label sets.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	namespace string
	subsystem string
}

// NewRegistry creates a new Registry.
func NewRegistry(namespace, subsystem string) *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		namespace:  namespace,
		subsystem:  subsystem,
	}
}

func (r *Registry) fullName(name string) string {
	parts := []string{}
	if r.namespace != "" {
		parts = append(parts, r.namespace)
	}
	if r.subsystem != "" {
		parts = append(parts, r.subsystem)
	}
	parts = append(parts, name)
	return strings.Join(parts, "_")
}

// RegisterCounter registers a counter, or returns the existing one with
// the same name and labels.
func (r *Registry) RegisterCounter(name, help string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	key := full + labels.String()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: full, help: help, labels: labels}
	r.counters[key] = c
	return c
}

// RegisterGauge registers a gauge, or returns the existing one.
func (r *Registry) RegisterGauge(name, help string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	key := full + labels.String()
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: full, help: help, labels: labels}
	r.gauges[key] = g
	return g
}

// RegisterHistogram registers a histogram, or returns the existing one.
// Nil buckets means DurationBuckets.
func (r *Registry) RegisterHistogram(name, help string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	key := full + labels.String()
	if h, ok := r.histograms[key]; ok {
		return h
	}
	h := newHistogram(full, help, labels, buckets)
	r.histograms[key] = h
	return h
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WritePrometheus writes metrics in Prometheus text format. HELP and TYPE
// lines are written once per metric name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	header := func(name, help string, t MetricType) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, t)
		return err
	}

	for _, k := range sortedKeys(r.counters) {
		c := r.counters[k]
		if err := header(c.name, c.help, TypeCounter); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s %d\n", c.name, c.labels.String(), c.Value()); err != nil {
			return err
		}
	}

	for _, k := range sortedKeys(r.gauges) {
		g := r.gauges[k]
		if err := header(g.name, g.help, TypeGauge); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s %d\n", g.name, g.labels.String(), g.Value()); err != nil {
			return err
		}
	}

	for _, k := range sortedKeys(r.histograms) {
		h := r.histograms[k]
		if err := header(h.name, h.help, TypeHistogram); err != nil {
			return err
		}
		h.mu.Lock()
		cum := h.cumulative()
		var b strings.Builder
		for i, bound := range h.buckets {
			fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, h.labels.with("le", fmt.Sprintf("%g", bound)), cum[i])
		}
		fmt.Fprintf(&b, "%s_bucket%s %d\n", h.name, h.labels.with("le", "+Inf"), cum[len(cum)-1])
		fmt.Fprintf(&b, "%s_sum%s %g\n", h.name, h.labels.String(), h.sum)
		fmt.Fprintf(&b, "%s_count%s %d\n", h.name, h.labels.String(), h.count)
		h.mu.Unlock()
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes a snapshot of all metrics as indented JSON.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}

// Snapshot returns current values keyed by name plus labels. Histograms
// contribute _sum and _count entries.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]any)
	for k, c := range r.counters {
		snapshot[k] = c.Value()
	}
	for k, g := range r.gauges {
		snapshot[k] = g.Value()
	}
	for _, h := range r.histograms {
		labels := h.labels.String()
		snapshot[h.name+"_sum"+labels] = h.Sum()
		snapshot[h.name+"_count"+labels] = h.Count()
	}
	return snapshot
}

// Reset zeroes all metrics.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.counters {
		c.value.Store(0)
	}
	for _, g := range r.gauges {
		g.value.Store(0)
	}
	for _, h := range r.histograms {
		h.mu.Lock()
		h.sum = 0
		h.count = 0
		clear(h.counts)
		h.mu.Unlock()
	}
}
