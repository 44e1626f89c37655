package queue

import (
	"errors"
	"net/http"

	"github.com/YeonwooSung/ticketing-system/internal/shared/database"
	"github.com/YeonwooSung/ticketing-system/internal/shared/middleware"
	"github.com/YeonwooSung/ticketing-system/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	service   Service
	db        *database.DB
	validator *validator.Validate
}

func NewController(service Service, db *database.DB) *Controller {
	return &Controller{
		service:   service,
		db:        db,
		validator: validator.New(),
	}
}

// EnqueueReservation handles POST /v2/reservations - admit into the queue
func (c *Controller) EnqueueReservation(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	var req EnqueueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}
	seatIDs := make([]uuid.UUID, 0, len(req.SeatIDs))
	for _, raw := range req.SeatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid seat ID: "+raw, nil, nil)
			return
		}
		seatIDs = append(seatIDs, id)
	}

	priority := Priority(req.Priority)
	queued, err := c.service.Enqueue(ctx.Request.Context(), eventID, seatIDs, userID, priority)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManySeats), errors.Is(err, ErrDuplicateSeats):
			response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Failed to enqueue request", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusAccepted, "Reservation request accepted",
		gin.H{"request_id": queued.RequestID, "status": "pending"}, nil)
}

// GetRequestStatus handles GET /v2/reservations/:request_id
func (c *Controller) GetRequestStatus(ctx *gin.Context) {
	requestID := ctx.Param("request_id")

	req, err := c.service.Get(ctx.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, ErrStatusNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Request status expired or unknown",
				nil, gin.H{"state": string(StateExpired)})
			return
		}
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Failed to read request status", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Request status retrieved", req, nil)
}

// CancelRequest handles DELETE /v2/reservations/:request_id - best effort
func (c *Controller) CancelRequest(ctx *gin.Context) {
	requestID := ctx.Param("request_id")

	cancelled, err := c.service.Cancel(ctx.Request.Context(), requestID, middleware.UserID(ctx))
	if err != nil {
		switch {
		case errors.Is(err, ErrStatusNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Request status expired or unknown", nil, nil)
		case errors.Is(err, ErrNotOwner):
			response.RespondJSON(ctx, "error", http.StatusForbidden, "Request does not belong to caller", nil, nil)
		case errors.Is(err, ErrNotCancellable):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Request is already processing or finished", cancelled, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Failed to cancel request", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Request cancelled", cancelled, nil)
}

// GetStats handles GET /v2/queue/stats/:event_id
func (c *Controller) GetStats(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("event_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	stats, err := c.service.Stats(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Failed to read queue stats", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Queue stats retrieved", stats, nil)
}

// GetHealth handles GET /v2/queue/health
func (c *Controller) GetHealth(ctx *gin.Context) {
	if err := c.db.HealthCheck(ctx.Request.Context()); err != nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Queue backends unhealthy", nil, err.Error())
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Queue healthy", gin.H{"healthy": true}, nil)
}
