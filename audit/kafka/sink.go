// Package kafka exports audit events to a Kafka topic with a sarama sync
// producer. Plug a Sink into eduAuth.Builder.WithAuditSink.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// DefaultTopic receives events when Config.Topic is empty.
const DefaultTopic = "eduauth.audit"

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Sink publishes each event as JSON keyed by user id (or email before the
// user exists). Publish failures are logged and dropped; the engine never
// waits on Kafka.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

var _ eduAuth.AuditSink = (*Sink)(nil)

// ProducerConfig is the sarama configuration New uses.
func ProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

// New dials the brokers.
func New(cfg Config, log *zap.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, ProducerConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic, log), nil
}

func NewWithProducer(producer sarama.SyncProducer, topic string, log *zap.Logger) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{producer: producer, topic: topic, log: log.Named("audit.kafka")}
}

func (s *Sink) Emit(ctx context.Context, event eduAuth.AuditEvent) {
	if ctx.Err() != nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("marshal audit event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	key := event.UserID
	if key == "" {
		key = event.Email
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
		Timestamp: event.Timestamp,
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.log.Error("kafka publish failed",
			zap.String("topic", s.topic),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

func (s *Sink) Close() error {
	if s.producer == nil {
		return nil
	}
	return s.producer.Close()
}
