package outbox

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/domain"
)

// Publisher delivers outbox events to a downstream broker.
type Publisher interface {
	// Publish delivers a single event. It must only return nil once the
	// broker has acknowledged the write.
	Publish(ctx context.Context, event *domain.OutboxEvent) error

	// Close releases publisher resources.
	Close() error
}

// KafkaPublisher publishes outbox events to a Kafka topic.
// Messages are keyed by aggregate ID so events for one review land on the
// same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// Compile-time interface verification.
var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher from the Kafka configuration.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes the event to Kafka. Event identity and type travel as
// message headers so consumers can route without parsing the payload.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
