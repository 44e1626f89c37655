package reservations

import (
	"errors"
	"net/http"

	"github.com/YeonwooSung/ticketing-system/internal/events"
	"github.com/YeonwooSung/ticketing-system/internal/shared/middleware"
	"github.com/YeonwooSung/ticketing-system/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	engine    Engine
	validator *validator.Validate
}

func NewController(engine Engine) *Controller {
	return &Controller{
		engine:    engine,
		validator: validator.New(),
	}
}

// CreateReservation handles POST /reservations (Path A)
func (c *Controller) CreateReservation(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	var req CreateReservationRequest
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

	result, err := c.engine.Reserve(ctx.Request.Context(), eventID, seatIDs, userID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats reserved successfully", result, nil)
}

// ListReservations handles GET /reservations - the caller's active holds
func (c *Controller) ListReservations(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	rows, err := c.engine.ListActive(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list reservations", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservations retrieved successfully", rows, nil)
}

// GetReservation handles GET /reservations/:id
func (c *Controller) GetReservation(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	reservation, err := c.engine.Get(ctx.Request.Context(), id)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	if reservation.UserID != middleware.UserID(ctx) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Reservation does not belong to caller", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved successfully", reservation, nil)
}

// ExtendReservation handles POST /reservations/:id/extend
func (c *Controller) ExtendReservation(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	newExpiry, err := c.engine.Extend(ctx.Request.Context(), id, middleware.UserID(ctx))
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation extended successfully",
		gin.H{"expires_at": newExpiry}, nil)
}

// CancelReservation handles DELETE /reservations/:id
func (c *Controller) CancelReservation(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	if err := c.engine.Cancel(ctx.Request.Context(), id, middleware.UserID(ctx)); err != nil {
		respondEngineError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation cancelled successfully", nil, nil)
}

// respondEngineError maps engine errors onto the HTTP error taxonomy.
func respondEngineError(ctx *gin.Context, err error) {
	var unavailable *SeatUnavailableError
	switch {
	case errors.As(err, &unavailable):
		response.RespondJSON(ctx, "error", http.StatusConflict, unavailable.Error(),
			nil, gin.H{"kind": "SeatUnavailable", "seat_id": unavailable.SeatID.String()})
	case errors.Is(err, ErrEventNotOnSale):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, gin.H{"kind": "EventNotOnSale"})
	case errors.Is(err, ErrLockTimeout), errors.Is(err, ErrOptimisticConflict):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, gin.H{"kind": "Unavailable"})
	case errors.Is(err, ErrAlreadyExpired), errors.Is(err, ErrNotActive):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, gin.H{"kind": "Unavailable"})
	case errors.Is(err, ErrNoSeats), errors.Is(err, ErrTooManySeats), errors.Is(err, ErrDuplicateSeats):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, gin.H{"kind": "Validation"})
	case errors.Is(err, ErrNotOwner):
		response.RespondJSON(ctx, "error", http.StatusForbidden, err.Error(), nil, nil)
	case errors.Is(err, ErrReservationNotFound), errors.Is(err, ErrSeatNotFound), errors.Is(err, events.ErrEventNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, err.Error(), nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Temporary failure, please retry", nil, nil)
	}
}
