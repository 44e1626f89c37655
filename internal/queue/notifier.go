package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/notifications"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes request snapshots on the shared pub/sub channels.
// Every instance's notification bridge picks them up, so delivery works no
// matter which instance holds the WebSocket.
type RedisNotifier struct {
	redis *redis.Client
}

// NewRedisNotifier creates the pub/sub-backed notifier
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: client}
}

// PublishRequest publishes the snapshot on the request and user channels.
func (n *RedisNotifier) PublishRequest(ctx context.Context, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request snapshot: %w", err)
	}

	msg := notifications.Message{
		Type:      messageTypeFor(req.State),
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Data:      data,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := n.redis.Pipeline()
	pipe.Publish(ctx, notifications.RequestChannel(req.RequestID), payload)
	pipe.Publish(ctx, notifications.UserChannel(req.UserID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// messageTypeFor maps a request state onto the wire message type.
func messageTypeFor(state State) notifications.MessageType {
	switch state {
	case StateCompleted:
		return notifications.TypeReservationComplete
	case StateFailed, StateExpired:
		return notifications.TypeReservationFailed
	case StateCancelled:
		return notifications.TypeReservationCancelled
	default:
		return notifications.TypeStatusUpdate
	}
}
