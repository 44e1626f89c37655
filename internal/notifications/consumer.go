package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/IBM/sarama"
)

// EventConsumer drains the domain-event topic with a consumer group and
// hands each event to a delivery sink (email, push, audit log).
type EventConsumer struct {
	group sarama.ConsumerGroup
	topic string
	sink  func(context.Context, *DomainEvent) error
	log   *logger.Logger
}

// NewEventConsumer creates a consumer-group reader for the pipeline topic.
// A nil sink logs deliveries.
func NewEventConsumer(cfg config.KafkaConfig, sink func(context.Context, *DomainEvent) error, log *logger.Logger) (*EventConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	consumer := &EventConsumer{
		group: group,
		topic: cfg.Topic,
		sink:  sink,
		log:   log.WithComponent("event-consumer"),
	}
	if consumer.sink == nil {
		consumer.sink = consumer.logSink
	}
	return consumer, nil
}

// Start consumes until ctx is cancelled.
func (c *EventConsumer) Start(ctx context.Context) {
	handler := &groupHandler{consumer: c}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			c.log.Error("consume session failed", "error", err.Error())
		}
		if ctx.Err() != nil {
			c.log.Info("event consumer stopping")
			return
		}
	}
}

// Close shuts the consumer group down
func (c *EventConsumer) Close() error {
	return c.group.Close()
}

func (c *EventConsumer) logSink(ctx context.Context, event *DomainEvent) error {
	c.log.Info("domain event delivered",
		"type", string(event.Type),
		"user_id", event.UserID,
		"booking_id", event.BookingID,
		"reference", event.Reference,
	)
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	consumer *EventConsumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event DomainEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			h.consumer.log.Warn("dropping malformed domain event",
				"offset", message.Offset, "error", err.Error())
			session.MarkMessage(message, "")
			continue
		}

		if err := h.consumer.sink(session.Context(), &event); err != nil {
			h.consumer.log.Error("sink delivery failed",
				"type", string(event.Type), "error", err.Error())
			// Leave unmarked so the event is redelivered.
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}
