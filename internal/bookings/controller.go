package bookings

import (
	"errors"
	"net/http"

	"github.com/YeonwooSung/ticketing-system/internal/shared/middleware"
	"github.com/YeonwooSung/ticketing-system/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
	}
}

// CreateBooking handles POST /bookings - finalize held reservations
func (c *Controller) CreateBooking(ctx *gin.Context) {
	userID := middleware.UserID(ctx)

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	reservationIDs := make([]uuid.UUID, 0, len(req.ReservationIDs))
	for _, raw := range req.ReservationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID: "+raw, nil, nil)
			return
		}
		reservationIDs = append(reservationIDs, id)
	}

	booking, err := c.service.CreateBooking(ctx.Request.Context(), reservationIDs, userID)
	if err != nil {
		respondBookingError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking created successfully", booking, nil)
}

// GetUserBookings handles GET /bookings - the caller's bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	bookingsList, err := c.service.GetUserBookings(ctx.Request.Context(), middleware.UserID(ctx))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list bookings", nil, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", bookingsList, nil)
}

// GetBooking handles GET /bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		respondBookingError(ctx, err)
		return
	}
	if booking.UserID != middleware.UserID(ctx) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Booking does not belong to caller", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// GetBookingByReference handles GET /bookings/reference/:ref
func (c *Controller) GetBookingByReference(ctx *gin.Context) {
	booking, err := c.service.GetBookingByReference(ctx.Request.Context(), ctx.Param("ref"))
	if err != nil {
		respondBookingError(ctx, err)
		return
	}
	if booking.UserID != middleware.UserID(ctx) {
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Booking does not belong to caller", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// ConfirmPayment handles POST /bookings/:id/confirm-payment
func (c *Controller) ConfirmPayment(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	var req ConfirmPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	booking, err := c.service.ConfirmPayment(ctx.Request.Context(), id, middleware.UserID(ctx), req.PaymentID)
	if err != nil {
		respondBookingError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment confirmed", booking, nil)
}

// CancelBooking handles POST /bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := c.service.CancelBooking(ctx.Request.Context(), id, middleware.UserID(ctx))
	if err != nil {
		respondBookingError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled", booking, nil)
}

// respondBookingError maps booking errors onto the HTTP error taxonomy.
func respondBookingError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrReservationNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, err.Error(), nil, nil)
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrReservationNotOwned):
		response.RespondJSON(ctx, "error", http.StatusForbidden, err.Error(), nil, nil)
	case errors.Is(err, ErrNoReservations), errors.Is(err, ErrMixedEvents):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, gin.H{"kind": "Validation"})
	case errors.Is(err, ErrReservationNotActive),
		errors.Is(err, ErrReservationExpired),
		errors.Is(err, ErrSeatNotHeld),
		errors.Is(err, ErrSeatVersionConflict),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrPaymentMismatch),
		errors.Is(err, ErrLockTimeout):
		response.RespondJSON(ctx, "error", http.StatusConflict, err.Error(), nil, gin.H{"kind": "Unavailable"})
	default:
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Temporary failure, please retry", nil, nil)
	}
}
