package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/pkg/lock"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
)

// Locker is the slice of pkg/lock the engine needs
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, maxWait, retryInterval time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
	AcquireAll(ctx context.Context, keys []string, ttl, maxWait, retryInterval time.Duration) (*lock.MultiLock, error)
}

// Engine is the single entry point for seat state transitions. Both the
// synchronous handlers and the queue workers go through it.
type Engine interface {
	Reserve(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, error)
	Cancel(ctx context.Context, reservationID uuid.UUID, userID string) error
	Extend(ctx context.Context, reservationID uuid.UUID, userID string) (time.Time, error)
	Get(ctx context.Context, reservationID uuid.UUID) (*Reservation, error)
	ListActive(ctx context.Context, userID string) ([]Reservation, error)
	HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, bool, error)
}

type engine struct {
	repo   Repository
	locker Locker
	cfg    config.ReservationConfig
	log    *logger.Logger
}

// NewEngine creates a new reservation engine
func NewEngine(repo Repository, locker Locker, cfg config.ReservationConfig, log *logger.Logger) Engine {
	return &engine{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log.WithComponent("reservation-engine"),
	}
}

// SeatLockKey derives the distributed-lock key covering one seat.
func SeatLockKey(seatID uuid.UUID) string {
	return "seat:" + seatID.String()
}

// Reserve atomically transitions every requested seat to Reserved by userID,
// or changes nothing. Lock keys are derived from the sorted seat set so
// overlapping requests always contend in the same order.
func (e *engine) Reserve(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, error) {
	distinct, err := e.normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(distinct))
	for i, id := range distinct {
		keys[i] = SeatLockKey(id)
	}

	ml, err := e.locker.AcquireAll(ctx, keys, e.cfg.LockTimeout, e.cfg.LockMaxWait, e.cfg.LockRetryInterval)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return nil, err
	}
	defer ml.Release(context.WithoutCancel(ctx))

	return e.repo.ReserveSeats(ctx, eventID, distinct, userID, e.cfg.HoldTimeout)
}

// Cancel releases an active reservation held by userID.
func (e *engine) Cancel(ctx context.Context, reservationID uuid.UUID, userID string) error {
	reservation, err := e.repo.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}

	key := SeatLockKey(reservation.SeatID)
	token, err := e.locker.Acquire(ctx, key, e.cfg.LockTimeout, e.cfg.LockMaxWait, e.cfg.LockRetryInterval)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return err
	}
	defer e.releaseLock(ctx, key, token)

	return e.repo.Cancel(ctx, reservationID, userID)
}

// Extend pushes an active reservation's expiry to now + hold timeout.
func (e *engine) Extend(ctx context.Context, reservationID uuid.UUID, userID string) (time.Time, error) {
	reservation, err := e.repo.GetByID(ctx, reservationID)
	if err != nil {
		return time.Time{}, err
	}

	key := SeatLockKey(reservation.SeatID)
	token, err := e.locker.Acquire(ctx, key, e.cfg.LockTimeout, e.cfg.LockMaxWait, e.cfg.LockRetryInterval)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return time.Time{}, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return time.Time{}, err
	}
	defer e.releaseLock(ctx, key, token)

	return e.repo.Extend(ctx, reservationID, userID, e.cfg.HoldTimeout)
}

func (e *engine) Get(ctx context.Context, reservationID uuid.UUID) (*Reservation, error) {
	return e.repo.GetByID(ctx, reservationID)
}

func (e *engine) ListActive(ctx context.Context, userID string) ([]Reservation, error) {
	return e.repo.GetActiveByUser(ctx, userID)
}

func (e *engine) HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, bool, error) {
	distinct, err := e.normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, false, err
	}
	return e.repo.HeldByUser(ctx, eventID, distinct, userID)
}

// normalizeSeatIDs validates cardinality, rejects duplicates and returns the
// set sorted ascending.
func (e *engine) normalizeSeatIDs(seatIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(seatIDs) == 0 {
		return nil, ErrNoSeats
	}
	if len(seatIDs) > e.cfg.MaxSeatsPerBooking {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySeats, len(seatIDs), e.cfg.MaxSeatsPerBooking)
	}

	seen := make(map[uuid.UUID]struct{}, len(seatIDs))
	distinct := make([]uuid.UUID, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateSeats
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	sort.Slice(distinct, func(i, j int) bool {
		return distinct[i].String() < distinct[j].String()
	})
	return distinct, nil
}

func (e *engine) releaseLock(ctx context.Context, key, token string) {
	if err := e.locker.Release(context.WithoutCancel(ctx), key, token); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		e.log.Warn("lock release failed", "key", key, "error", err.Error())
	}
}
