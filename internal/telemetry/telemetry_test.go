package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"

	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/metrics"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()

	s.RecordDecision(DecisionEvent{QueryID: "q1", Profile: "simple", Model: "mistral"})
	s.RecordDecision(DecisionEvent{QueryID: "q2", Profile: "technical", Model: "llama2"})
	s.RecordLoad(loadmon.Snapshot{CPUUtilization: 0.5, Timestamp: time.Now()})

	decisions := s.Decisions()
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].QueryID != "q1" || decisions[1].Profile != "technical" {
		t.Errorf("unexpected decisions: %+v", decisions)
	}
	if len(s.Loads()) != 1 {
		t.Errorf("expected 1 load snapshot, got %d", len(s.Loads()))
	}
}

func TestMemorySinkConcurrent(t *testing.T) {
	s := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordDecision(DecisionEvent{QueryID: "q"})
			}
		}()
	}
	wg.Wait()

	if got := len(s.Decisions()); got != 1000 {
		t.Errorf("expected 1000 decisions, got %d", got)
	}
}

func TestLogSinkDoesNotPanic(t *testing.T) {
	s := NewLogSink(logger.New("error", "json"))
	s.RecordDecision(DecisionEvent{QueryID: "q1"})
	s.RecordLoad(loadmon.Snapshot{})
	if err := s.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.RecordDecision(DecisionEvent{})
	s.RecordLoad(loadmon.Snapshot{})
	if err := s.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestKafkaSinkValidation(t *testing.T) {
	log := logger.Default()

	if _, err := NewKafkaSink(KafkaConfig{Topic: "t"}, log); err == nil {
		t.Error("expected error for missing brokers")
	}
	if _, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}}, log); err == nil {
		t.Error("expected error for missing topic")
	}
}

func TestKafkaSinkCountsDeliveryErrors(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(fmt.Errorf("broker unreachable"))

	errs := metrics.NewCounter("telemetry_errors_total", "")
	s := &KafkaSink{
		producer: producer,
		topic:    "decisions",
		log:      logger.Default().WithComponent("telemetry"),
		errs:     errs,
		done:     make(chan struct{}),
	}
	go s.drainErrors()

	s.RecordDecision(DecisionEvent{QueryID: "q1"})

	// Close waits for the error drain, so the count is settled after it.
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := errs.Value(); got != 1 {
		t.Errorf("error count = %d, want 1", got)
	}
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"localhost:9092", 1},
		{"a:9092, b:9092,c:9092", 3},
		{"", 0},
		{" , ", 0},
	}

	for _, tt := range tests {
		if got := ParseBrokers(tt.input); len(got) != tt.expected {
			t.Errorf("ParseBrokers(%q) = %v, want %d brokers", tt.input, got, tt.expected)
		}
	}
}
