package notifications

import (
	"context"
	"encoding/json"

	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Bridge feeds the in-process hub from the shared pub/sub channels, so
// workers on any instance reach listeners connected here.
type Bridge struct {
	redis *redis.Client
	hub   *Hub
	log   *logger.Logger
}

// NewBridge creates a pub/sub bridge into hub
func NewBridge(client *redis.Client, hub *Hub, log *logger.Logger) *Bridge {
	return &Bridge{
		redis: client,
		hub:   hub,
		log:   log.WithComponent("notification-bridge"),
	}
}

// Start subscribes to the notification channel pattern and republishes into
// the hub until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) {
	sub := b.redis.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	b.log.Info("notification bridge subscribed", "pattern", channelPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("notification bridge stopping")
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.log.Warn("dropping malformed notification",
					"channel", raw.Channel, "error", err.Error())
				continue
			}
			// Both channel families carry the same message; deliver the
			// request-channel copy only, so each listener sees it once.
			if msg.RequestID == "" || raw.Channel == RequestChannel(msg.RequestID) {
				b.hub.Publish(msg)
			}
		}
	}
}
