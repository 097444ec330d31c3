// Package telemetry exports routing decisions and load snapshots to
// observability backends. Export is fire-and-forget: sink failures are
// logged and counted but never surface to routing.
package telemetry

import (
	"sync"
	"time"

	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

// DecisionEvent is the exported record of one routing decision.
// Attributes holds caller-supplied metadata; the routing engine masks
// sensitive values before the event reaches any sink.
type DecisionEvent struct {
	QueryID      string            `json:"query_id"`
	Caller       string            `json:"caller,omitempty"`
	Profile      string            `json:"profile"`
	Model        string            `json:"model"`
	AnomalyScore float64           `json:"anomaly_score"`
	Complexity   float64           `json:"complexity"`
	Risk         float64           `json:"risk"`
	CacheHit     bool              `json:"cache_hit"`
	Load         loadmon.Snapshot  `json:"load"`
	LatencyMS    int64             `json:"latency_ms"`
	Timestamp    time.Time         `json:"timestamp"`
	Error        string            `json:"error,omitempty"`
	RetriedModel string            `json:"retried_model,omitempty"`
	DegradedLoad bool              `json:"degraded_load"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Sink receives routing telemetry.
type Sink interface {
	// RecordDecision exports one routing decision.
	RecordDecision(event DecisionEvent)

	// RecordLoad exports a load snapshot.
	RecordLoad(snap loadmon.Snapshot)

	// Close flushes and releases resources.
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionEvent) {}
func (NopSink) RecordLoad(loadmon.Snapshot)  {}
func (NopSink) Close() error                 { return nil }

// LogSink writes telemetry to the structured log.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("telemetry")}
}

func (s *LogSink) RecordDecision(event DecisionEvent) {
	s.log.Info("routing decision",
		"query_id", event.QueryID,
		"profile", event.Profile,
		"model", event.Model,
		"anomaly_score", event.AnomalyScore,
		"complexity", event.Complexity,
		"risk", event.Risk,
		"cache_hit", event.CacheHit,
		"latency_ms", event.LatencyMS,
	)
}

func (s *LogSink) RecordLoad(snap loadmon.Snapshot) {
	s.log.Debug("load snapshot",
		"cpu", snap.CPUUtilization,
		"memory", snap.MemoryUtilization,
		"in_flight", snap.InFlightRequests,
		"degraded", snap.Degraded,
	)
}

func (s *LogSink) Close() error { return nil }

// MemorySink buffers events in memory, mainly for tests.
type MemorySink struct {
	mu        sync.Mutex
	decisions []DecisionEvent
	loads     []loadmon.Snapshot
}

// NewMemorySink creates a memory-backed sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordDecision(event DecisionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, event)
}

func (s *MemorySink) RecordLoad(snap loadmon.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, snap)
}

// Decisions returns a copy of the recorded decision events.
func (s *MemorySink) Decisions() []DecisionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DecisionEvent, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// Loads returns a copy of the recorded load snapshots.
func (s *MemorySink) Loads() []loadmon.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]loadmon.Snapshot, len(s.loads))
	copy(out, s.loads)
	return out
}

func (s *MemorySink) Close() error { return nil }
