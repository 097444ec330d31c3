package metrics

import (
	"runtime"
	"time"
)

// Metrics holds all metrics exposed by the routing service.
type Metrics struct {
	// Request metrics.
	RouteRequests *Counter
	RouteErrors   *CounterVec
	RouteLatency  *Histogram

	// Decision metrics.
	DecisionsByProfile *CounterVec
	AnomalyScore       *Histogram
	QueryComplexity    *Histogram
	Retries            *Counter

	// Cache metrics.
	CacheHits   *Counter
	CacheMisses *Counter

	// Inference metrics.
	InferenceLatency *Histogram

	// Load metrics.
	RequestsInFlight *Gauge
	CPUUtilization   *Gauge
	MemUtilization   *Gauge

	// Telemetry metrics.
	TelemetryErrors *Counter

	// Runtime metrics.
	Goroutines  *Gauge
	MemoryBytes *Gauge

	startTime time.Time
}

// New creates the metrics set.
func New() *Metrics {
	return &Metrics{
		RouteRequests: NewCounter("route_requests_total",
			"Total routing requests received"),
		RouteErrors: NewCounterVec("route_errors_total",
			"Total routing errors by error type", "error_type"),
		RouteLatency: NewHistogram("route_latency_seconds",
			"End to end routing latency in seconds",
			[]float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}),

		DecisionsByProfile: NewCounterVec("route_decisions_total",
			"Routing decisions by selected profile", "profile"),
		AnomalyScore: NewHistogram("route_anomaly_score",
			"Anomaly score of routed queries",
			[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}),
		QueryComplexity: NewHistogram("route_query_complexity",
			"Complexity estimate of routed queries",
			[]float64{1, 5, 10, 20, 50, 100, 250}),
		Retries: NewCounter("route_retries_total",
			"Routing retries after inference failure"),

		CacheHits: NewCounter("cache_hits_total",
			"Response cache hits"),
		CacheMisses: NewCounter("cache_misses_total",
			"Response cache misses"),

		InferenceLatency: NewHistogram("inference_latency_seconds",
			"Model invocation latency in seconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}),

		RequestsInFlight: NewGauge("requests_in_flight",
			"Requests currently being processed"),
		CPUUtilization: NewGauge("host_cpu_utilization",
			"Host CPU utilization between 0 and 1"),
		MemUtilization: NewGauge("host_memory_utilization",
			"Host memory utilization between 0 and 1"),

		TelemetryErrors: NewCounter("telemetry_errors_total",
			"Telemetry events dropped or failed"),

		Goroutines: NewGauge("go_goroutines",
			"Number of goroutines"),
		MemoryBytes: NewGauge("go_memory_alloc_bytes",
			"Bytes of allocated heap objects"),

		startTime: time.Now(),
	}
}

// UpdateRuntime refreshes the runtime gauges.
func (m *Metrics) UpdateRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines.Set(float64(runtime.NumGoroutine()))
	m.MemoryBytes.Set(float64(ms.Alloc))
}

// Uptime returns the time since the metrics set was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
