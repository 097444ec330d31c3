// Package metrics provides Prometheus-compatible metrics for the routing
// engine.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds the given value to the counter. Negative deltas are ignored.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return
	}
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Help returns the metric help text.
func (c *Counter) Help() string { return c.help }

// Gauge is a metric that can go up and down.
type Gauge struct {
	name string
	help string
	bits uint64
}

// NewGauge creates a new gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(value float64) {
	atomic.StoreUint64(&g.bits, math.Float64bits(value))
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits))
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Help returns the metric help text.
func (g *Gauge) Help() string { return g.help }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64

	mu     sync.Mutex
	counts []int64
	sum    float64
	total  int64
}

// NewHistogram creates a histogram with the given upper bucket bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)

	return &Histogram{
		name:    name,
		help:    help,
		buckets: sorted,
		counts:  make([]int64, len(sorted)),
	}
}

// Observe records a value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
	h.sum += value
	h.total++
}

// Snapshot returns cumulative bucket counts, the sum, and the total count.
func (h *Histogram) Snapshot() ([]float64, []int64, float64, int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bounds := make([]float64, len(h.buckets))
	copy(bounds, h.buckets)
	counts := make([]int64, len(h.counts))
	copy(counts, h.counts)
	return bounds, counts, h.sum, h.total
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Help returns the metric help text.
func (h *Histogram) Help() string { return h.help }

// CounterVec is a set of counters partitioned by a single label.
type CounterVec struct {
	name      string
	help      string
	labelName string

	mu     sync.RWMutex
	values map[string]*int64
}

// NewCounterVec creates a labeled counter family.
func NewCounterVec(name, help, labelName string) *CounterVec {
	return &CounterVec{
		name:      name,
		help:      help,
		labelName: labelName,
		values:    make(map[string]*int64),
	}
}

// Inc increments the counter for the given label value.
func (v *CounterVec) Inc(labelValue string) {
	v.mu.RLock()
	p, ok := v.values[labelValue]
	v.mu.RUnlock()

	if !ok {
		v.mu.Lock()
		if p, ok = v.values[labelValue]; !ok {
			p = new(int64)
			v.values[labelValue] = p
		}
		v.mu.Unlock()
	}

	atomic.AddInt64(p, 1)
}

// Value returns the counter for the given label value.
func (v *CounterVec) Value(labelValue string) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if p, ok := v.values[labelValue]; ok {
		return atomic.LoadInt64(p)
	}
	return 0
}

// Values returns all label values and their counts.
func (v *CounterVec) Values() map[string]int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]int64, len(v.values))
	for label, p := range v.values {
		out[label] = atomic.LoadInt64(p)
	}
	return out
}

// Name returns the metric name.
func (v *CounterVec) Name() string { return v.name }

// Help returns the metric help text.
func (v *CounterVec) Help() string { return v.help }

// LabelName returns the label name.
func (v *CounterVec) LabelName() string { return v.labelName }
