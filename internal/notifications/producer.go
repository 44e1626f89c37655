package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"

	"github.com/IBM/sarama"
)

// DomainEventType tags a terminal outcome published to the event pipeline
type DomainEventType string

const (
	EventReservationExpired DomainEventType = "reservation.expired"
	EventBookingConfirmed   DomainEventType = "booking.confirmed"
	EventBookingCancelled   DomainEventType = "booking.cancelled"
)

// DomainEvent is the Kafka payload for downstream consumers (receipts,
// mail, analytics).
type DomainEvent struct {
	Type       DomainEventType        `json:"type"`
	UserID     string                 `json:"user_id"`
	EventID    string                 `json:"event_id,omitempty"`
	BookingID  string                 `json:"booking_id,omitempty"`
	Reference  string                 `json:"reference,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// EventProducer publishes domain events to the notification pipeline
type EventProducer interface {
	Publish(ctx context.Context, event *DomainEvent) error
	Close() error
}

// KafkaEventProducer publishes domain events with a sarama sync producer
type KafkaEventProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaEventProducer creates a Kafka-backed event producer
func NewKafkaEventProducer(cfg config.KafkaConfig) (*KafkaEventProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Hash by user so one user's events stay ordered
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaEventProducer{producer: producer, topic: cfg.Topic}, nil
}

// Publish sends one domain event to the pipeline topic.
func (p *KafkaEventProducer) Publish(ctx context.Context, event *DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal domain event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
		Timestamp: event.OccurredAt,
	}

	if _, _, err := p.producer.SendMessage(message); err != nil {
		return fmt.Errorf("failed to publish domain event: %w", err)
	}
	return nil
}

// Close shuts the underlying producer down
func (p *KafkaEventProducer) Close() error {
	return p.producer.Close()
}

// NoopEventProducer drops every event; used when the pipeline is disabled.
type NoopEventProducer struct{}

func (NoopEventProducer) Publish(ctx context.Context, event *DomainEvent) error { return nil }
func (NoopEventProducer) Close() error                                          { return nil }
