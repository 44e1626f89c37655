package notifications

import (
	"testing"
	"time"

	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(logger.GetDefault())
}

func recv(t *testing.T, l *Listener) Message {
	t.Helper()
	select {
	case msg, ok := <-l.C():
		require.True(t, ok, "listener channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestPublishReachesRequestAndUserListeners(t *testing.T) {
	hub := testHub()

	byRequest := hub.Subscribe("req-1")
	byUser := hub.SubscribeUser("user-1")
	other := hub.Subscribe("req-2")
	defer byRequest.Close()
	defer byUser.Close()
	defer other.Close()

	hub.Publish(Message{Type: TypeStatusUpdate, RequestID: "req-1", UserID: "user-1"})

	assert.Equal(t, TypeStatusUpdate, recv(t, byRequest).Type)
	assert.Equal(t, "req-1", recv(t, byUser).RequestID)

	select {
	case <-other.C():
		t.Fatal("unrelated listener received a message")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	hub := testHub()

	slow := hub.Subscribe("req-1")

	// Fill the buffer without draining, then overflow it.
	for i := 0; i < defaultBufferSize+1; i++ {
		hub.Publish(Message{Type: TypeStatusUpdate, RequestID: "req-1"})
	}

	// Drain: after defaultBufferSize messages the channel must be closed.
	received := 0
	for range slow.C() {
		received++
	}
	assert.Equal(t, defaultBufferSize, received)
	assert.Equal(t, ReasonSlowConsumer, slow.Reason())
	assert.Equal(t, 0, hub.ListenerCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := testHub()

	l := hub.Subscribe("req-1")
	l.Close()
	l.Close() // must not panic

	assert.Equal(t, 0, hub.ListenerCount())
	assert.Equal(t, ReasonClosed, l.Reason())

	// Publishing after the listener is gone must not panic either.
	hub.Publish(Message{Type: TypeStatusUpdate, RequestID: "req-1"})
}

func TestTerminalMessageDelivery(t *testing.T) {
	hub := testHub()

	l := hub.SubscribeUser("user-9")
	defer l.Close()

	hub.Publish(Message{Type: TypeReservationComplete, RequestID: "req-9", UserID: "user-9"})
	hub.Publish(Message{Type: TypeReservationFailed, RequestID: "req-10", UserID: "user-9"})

	assert.Equal(t, TypeReservationComplete, recv(t, l).Type)
	assert.Equal(t, TypeReservationFailed, recv(t, l).Type)
}
