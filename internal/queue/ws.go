package queue

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/notifications"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSController upgrades live-status connections and streams hub messages
// onto them.
type WSController struct {
	hub         *notifications.Hub
	status      StatusStore
	idleTimeout time.Duration
	upgrader    websocket.Upgrader
	log         *logger.Logger
}

// NewWSController creates the WebSocket controller
func NewWSController(hub *notifications.Hub, status StatusStore, idleTimeout time.Duration, log *logger.Logger) *WSController {
	return &WSController{
		hub:         hub,
		status:      status,
		idleTimeout: idleTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.WithComponent("ws"),
	}
}

// StreamRequest handles GET /v2/ws/reservation/:request_id
func (c *WSController) StreamRequest(ctx *gin.Context) {
	requestID := ctx.Param("request_id")

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return // upgrader already wrote the error response
	}

	listener := c.hub.Subscribe(requestID)
	c.serve(conn, listener, c.snapshot(ctx, requestID))
}

// StreamUser handles GET /v2/ws/user/:user_id
func (c *WSController) StreamUser(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}

	listener := c.hub.SubscribeUser(userID)
	c.serve(conn, listener, nil)
}

// snapshot builds the on-open message for a request socket, nil when the
// status record is unknown.
func (c *WSController) snapshot(ctx *gin.Context, requestID string) *notifications.Message {
	req, err := c.status.Get(ctx.Request.Context(), requestID)
	if err != nil {
		if !errors.Is(err, ErrStatusNotFound) {
			c.log.Warn("snapshot read failed", "request_id", requestID, "error", err.Error())
		}
		return nil
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	return &notifications.Message{
		Type:      notifications.TypeStatusUpdate,
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// serve pumps hub messages onto the socket until the client goes idle, the
// listener is dropped, or either side closes.
func (c *WSController) serve(conn *websocket.Conn, listener *notifications.Listener, snapshot *notifications.Message) {
	defer listener.Close()
	defer conn.Close()

	// The client must ping periodically; silence beyond the idle timeout
	// closes the socket.
	resetDeadline := func() {
		_ = conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
	resetDeadline()
	conn.SetPingHandler(func(appData string) error {
		resetDeadline()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	conn.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	// Reader: discard client frames, enforce the deadline, signal close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			resetDeadline()
		}
	}()

	if snapshot != nil {
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case msg, ok := <-listener.C():
			if !ok {
				if listener.Reason() == notifications.ReasonSlowConsumer {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(notifications.ReasonSlowConsumer)),
						time.Now().Add(5*time.Second))
				}
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
