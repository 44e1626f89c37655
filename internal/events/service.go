package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSaleNotStarted = errors.New("sale start time is in the future")

// Service interface defines the contract for event business logic
type Service interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, req UpdateEventRequest) (*Event, error)
	StartSale(ctx context.Context, id uuid.UUID) (*Event, error)
}

type service struct {
	repo Repository
}

// NewService creates a new event service instance
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	event := &Event{
		Name:           req.Name,
		Venue:          req.Venue,
		Capacity:       req.Capacity,
		AvailableSeats: 0, // grows as seats are created
		Status:         StatusUpcoming,
	}

	if req.SaleStartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.SaleStartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid sale_start_time: %w", err)
		}
		event.SaleStartTime = &t
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListEvents(ctx context.Context) ([]Event, error) {
	return s.repo.GetAll(ctx)
}

func (s *service) UpdateEvent(ctx context.Context, id uuid.UUID, req UpdateEventRequest) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanBeUpdated() {
		return nil, fmt.Errorf("event in status %s cannot be updated", event.Status)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.SaleStartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.SaleStartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid sale_start_time: %w", err)
		}
		updates["sale_start_time"] = t
	}
	if req.Status != nil {
		status := Status(*req.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q", *req.Status)
		}
		updates["status"] = status
	}
	if len(updates) == 0 {
		return event, nil
	}

	return s.repo.Update(ctx, id, updates)
}

// StartSale flips an event to ON_SALE. The sale window must already be open.
func (s *service) StartSale(ctx context.Context, id uuid.UUID) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status == StatusOnSale {
		return event, nil
	}
	if event.Status != StatusUpcoming {
		return nil, fmt.Errorf("event in status %s cannot go on sale", event.Status)
	}
	if event.SaleStartTime != nil && event.SaleStartTime.After(time.Now()) {
		return nil, ErrSaleNotStarted
	}

	return s.repo.Update(ctx, id, map[string]interface{}{"status": StatusOnSale})
}
