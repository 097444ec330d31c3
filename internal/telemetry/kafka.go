package telemetry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/smartroute/smart-route/internal/loadmon"
	"github.com/smartroute/smart-route/internal/metrics"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
	"github.com/smartroute/smart-route/internal/pkg/logger"
)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers  []string         // Kafka broker addresses
	Topic    string           // Topic for decision events
	ClientID string           // Client identifier
	Version  string           // Kafka version (e.g. "2.8.0")
	Errors   *metrics.Counter // Counts dropped events and delivery errors. Optional.
}

// KafkaSink publishes telemetry to Kafka through an async producer, so
// RecordDecision never blocks routing. Delivery errors are consumed in the
// background, logged, and counted.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	log      *logger.Logger
	errs     *metrics.Counter
	done     chan struct{}
}

// NewKafkaSink connects to Kafka and starts the error drain.
func NewKafkaSink(cfg KafkaConfig, log *logger.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.ValidationError("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, apperrors.ValidationError("kafka topic cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "smart-route-telemetry"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, apperrors.ValidationError("invalid kafka version: " + cfg.Version)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = false
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "creating kafka producer", err)
	}

	errs := cfg.Errors
	if errs == nil {
		errs = &metrics.Counter{}
	}

	s := &KafkaSink{
		producer: producer,
		topic:    cfg.Topic,
		log:      log.WithComponent("telemetry"),
		errs:     errs,
		done:     make(chan struct{}),
	}

	go s.drainErrors()

	return s, nil
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *KafkaSink) drainErrors() {
	defer close(s.done)
	for err := range s.producer.Errors() {
		s.errs.Inc()
		s.log.Warn("telemetry publish failed", "topic", err.Msg.Topic, "error", err.Err)
	}
}

// RecordDecision enqueues a decision event. If the producer's buffer is
// full the event is dropped rather than blocking routing.
func (s *KafkaSink) RecordDecision(event DecisionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("encoding decision event failed", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.QueryID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case s.producer.Input() <- msg:
	default:
		s.errs.Inc()
		s.log.Warn("telemetry buffer full, dropping decision event", "query_id", event.QueryID)
	}
}

// RecordLoad enqueues a load snapshot on the same topic.
func (s *KafkaSink) RecordLoad(snap loadmon.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("encoding load snapshot failed", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder("load"),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case s.producer.Input() <- msg:
	default:
		s.errs.Inc()
		s.log.Warn("telemetry buffer full, dropping load snapshot")
	}
}

// Close shuts down the producer and waits for the error drain.
func (s *KafkaSink) Close() error {
	s.producer.AsyncClose()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
	return nil
}
