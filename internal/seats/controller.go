package seats

import (
	"errors"
	"net/http"

	"github.com/YeonwooSung/ticketing-system/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	repo      Repository
	validator *validator.Validate
}

func NewController(repo Repository) *Controller {
	return &Controller{
		repo:      repo,
		validator: validator.New(),
	}
}

// CreateSeats handles POST /events/:id/seats
func (c *Controller) CreateSeats(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	var req CreateSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	batch := make([]Seat, 0, len(req.Seats))
	for _, def := range req.Seats {
		batch = append(batch, Seat{
			EventID:    eventID,
			SeatNumber: def.SeatNumber,
			Price:      def.Price,
			Status:     StatusAvailable,
		})
	}

	if err := c.repo.CreateBatch(ctx.Request.Context(), eventID, batch); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusConflict, "Failed to create seats", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seats created successfully", batch, nil)
}

// GetSeats handles GET /events/:id/seats
func (c *Controller) GetSeats(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	seats, err := c.repo.GetByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list seats", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats retrieved successfully", seats, nil)
}

// GetAvailableSeats handles GET /events/:id/seats/available
func (c *Controller) GetAvailableSeats(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	seats, err := c.repo.GetAvailableByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to list available seats", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Available seats retrieved successfully", seats, nil)
}
