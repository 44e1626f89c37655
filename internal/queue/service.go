package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"

	"github.com/google/uuid"
)

var (
	ErrTooManySeats   = errors.New("seat count exceeds the per-booking maximum")
	ErrDuplicateSeats = errors.New("seat ids must be distinct")
	ErrNotCancellable = errors.New("request is already processing or finished")
	ErrNotOwner       = errors.New("request does not belong to user")
)

// Service admits requests into the priority queue and answers status and
// stats queries.
type Service interface {
	Enqueue(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string, priority Priority) (*Request, error)
	Get(ctx context.Context, requestID string) (*Request, error)
	Cancel(ctx context.Context, requestID, userID string) (*Request, error)
	Stats(ctx context.Context, eventID uuid.UUID) (*Stats, error)
}

type service struct {
	broker     Broker
	status     StatusStore
	throughput *Throughput
	cfg        config.ReservationConfig
}

// NewService creates the queue admission service
func NewService(broker Broker, status StatusStore, throughput *Throughput, cfg config.ReservationConfig) Service {
	return &service{
		broker:     broker,
		status:     status,
		throughput: throughput,
		cfg:        cfg,
	}
}

// Enqueue writes the initial Pending status record, then appends the request
// to its priority stream. It never waits for a worker.
func (s *service) Enqueue(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string, priority Priority) (*Request, error) {
	if len(seatIDs) > s.cfg.MaxSeatsPerBooking {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySeats, len(seatIDs), s.cfg.MaxSeatsPerBooking)
	}
	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateSeats
		}
		seen[id] = struct{}{}
	}
	if !priority.IsValid() {
		priority = PriorityNormal
	}

	req := &Request{
		RequestID:  NewRequestID(),
		EventID:    eventID,
		SeatIDs:    seatIDs,
		UserID:     userID,
		Priority:   priority,
		State:      StatePending,
		EnqueuedAt: time.Now(),
	}

	if err := s.status.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to write status record: %w", err)
	}
	if err := s.broker.Enqueue(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue request: %w", err)
	}
	return req, nil
}

func (s *service) Get(ctx context.Context, requestID string) (*Request, error) {
	return s.status.Get(ctx, requestID)
}

// Cancel flips a still-pending request to Cancelled. Workers check the state
// right before touching seats, so a successful cancel here is effective.
func (s *service) Cancel(ctx context.Context, requestID, userID string) (*Request, error) {
	current, err := s.status.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrNotOwner
	}

	cancelled, err := s.status.CancelIfPending(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			return cancelled, ErrNotCancellable
		}
		return nil, err
	}
	return cancelled, nil
}

func (s *service) Stats(ctx context.Context, eventID uuid.UUID) (*Stats, error) {
	pending, err := s.broker.PendingByPriority(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range pending {
		total += n
	}

	return &Stats{
		EventID:              eventID,
		PendingByPriority:    pending,
		TotalPending:         total,
		EstimatedWaitSeconds: s.throughput.EstimateWait(total),
	}, nil
}
