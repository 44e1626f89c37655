package notifications

import (
	"sync"

	"github.com/YeonwooSung/ticketing-system/pkg/logger"
)

// DisconnectReason explains why the hub dropped a listener
type DisconnectReason string

const (
	ReasonSlowConsumer DisconnectReason = "SlowConsumer"
	ReasonClosed       DisconnectReason = "Closed"
)

// defaultBufferSize bounds each listener's delivery channel. A listener that
// falls this far behind is disconnected rather than allowed to block others.
const defaultBufferSize = 16

// Listener is one live subscription. Close is idempotent.
type Listener struct {
	hub       *Hub
	requestID string
	userID    string
	ch        chan Message
	closeOnce sync.Once
	reason    DisconnectReason
}

// C is the delivery channel; it is closed when the listener is dropped.
func (l *Listener) C() <-chan Message {
	return l.ch
}

// Reason reports why the listener was disconnected, empty while live.
func (l *Listener) Reason() DisconnectReason {
	return l.reason
}

// Close deregisters the listener and closes its channel.
func (l *Listener) Close() {
	l.hub.drop(l, ReasonClosed)
}

// Hub is the in-process registry from request-id/user-id to live listeners.
// It is per API instance; cross-instance delivery rides the pub/sub bridge.
type Hub struct {
	mu        sync.RWMutex
	byRequest map[string]map[*Listener]struct{}
	byUser    map[string]map[*Listener]struct{}
	buffer    int
	log       *logger.Logger
}

// NewHub creates an empty notification hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		byRequest: make(map[string]map[*Listener]struct{}),
		byUser:    make(map[string]map[*Listener]struct{}),
		buffer:    defaultBufferSize,
		log:       log.WithComponent("notification-hub"),
	}
}

// Subscribe registers a listener for one request's updates.
func (h *Hub) Subscribe(requestID string) *Listener {
	l := &Listener{hub: h, requestID: requestID, ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byRequest[requestID] == nil {
		h.byRequest[requestID] = make(map[*Listener]struct{})
	}
	h.byRequest[requestID][l] = struct{}{}
	return l
}

// SubscribeUser registers a listener for all of one user's updates.
func (h *Hub) SubscribeUser(userID string) *Listener {
	l := &Listener{hub: h, userID: userID, ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Listener]struct{})
	}
	h.byUser[userID][l] = struct{}{}
	return l
}

// Publish fans the message out to every matching listener. Delivery is
// non-blocking per listener; a listener whose buffer is full is dropped with
// reason SlowConsumer.
func (h *Hub) Publish(msg Message) {
	var slow []*Listener

	h.mu.RLock()
	for l := range h.byRequest[msg.RequestID] {
		if !trySend(l, msg) {
			slow = append(slow, l)
		}
	}
	if msg.UserID != "" {
		for l := range h.byUser[msg.UserID] {
			if !trySend(l, msg) {
				slow = append(slow, l)
			}
		}
	}
	h.mu.RUnlock()

	for _, l := range slow {
		h.log.Warn("dropping slow listener",
			"request_id", l.requestID, "user_id", l.userID)
		h.drop(l, ReasonSlowConsumer)
	}
}

func trySend(l *Listener, msg Message) bool {
	select {
	case l.ch <- msg:
		return true
	default:
		return false
	}
}

// drop removes the listener from both maps and closes its channel once.
func (h *Hub) drop(l *Listener, reason DisconnectReason) {
	h.mu.Lock()
	if l.requestID != "" {
		if set := h.byRequest[l.requestID]; set != nil {
			delete(set, l)
			if len(set) == 0 {
				delete(h.byRequest, l.requestID)
			}
		}
	}
	if l.userID != "" {
		if set := h.byUser[l.userID]; set != nil {
			delete(set, l)
			if len(set) == 0 {
				delete(h.byUser, l.userID)
			}
		}
	}
	h.mu.Unlock()

	l.closeOnce.Do(func() {
		l.reason = reason
		close(l.ch)
	})
}

// ListenerCount reports how many listeners are registered, for health output.
func (h *Hub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.byRequest {
		n += len(set)
	}
	for _, set := range h.byUser {
		n += len(set)
	}
	return n
}
