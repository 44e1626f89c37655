package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/notifications"
	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/pkg/lock"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"
)

// Sweeper periodically returns seats whose hold timed out to the available
// pool and marks the owning reservations expired.
type Sweeper struct {
	repo     Repository
	locker   Locker
	producer notifications.EventProducer
	cfg      config.ReservationConfig
	log      *logger.Logger
}

// NewSweeper creates a new expiration sweeper. producer may be nil when the
// event pipeline is disabled.
func NewSweeper(repo Repository, locker Locker, producer notifications.EventProducer, cfg config.ReservationConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		locker:   locker,
		producer: producer,
		cfg:      cfg,
		log:      log.WithComponent("expiration-sweeper"),
	}
}

// Start runs sweep cycles until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweeperInterval)
	defer ticker.Stop()

	s.log.Info("expiration sweeper started", "interval", s.cfg.SweeperInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiration sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle. Failures in one reservation never halt the rest.
func (s *Sweeper) Sweep(ctx context.Context) {
	batch, err := s.repo.ExpiredBatch(ctx, s.cfg.SweeperBatchSize)
	if err != nil {
		s.log.Error("failed to select expired reservations", "error", err.Error())
		return
	}
	if len(batch) == 0 {
		return
	}

	swept := 0
	for _, reservation := range batch {
		if err := s.sweepOne(ctx, reservation); err != nil {
			s.log.Warn("failed to sweep reservation",
				"reservation_id", reservation.ID.String(),
				"seat_id", reservation.SeatID.String(),
				"error", err.Error(),
			)
			continue
		}
		swept++
		s.publishExpired(ctx, reservation)
	}

	s.log.Info("sweep cycle finished", "selected", len(batch), "swept", swept)
}

func (s *Sweeper) sweepOne(ctx context.Context, reservation Reservation) error {
	key := SeatLockKey(reservation.SeatID)
	token, err := s.locker.Acquire(ctx, key, s.cfg.LockTimeout, s.cfg.LockMaxWait, s.cfg.LockRetryInterval)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			s.log.Warn("lock release failed", "key", key, "error", err.Error())
		}
	}()

	return s.repo.ExpireOne(ctx, reservation.ID)
}

func (s *Sweeper) publishExpired(ctx context.Context, reservation Reservation) {
	if s.producer == nil {
		return
	}
	err := s.producer.Publish(ctx, &notifications.DomainEvent{
		Type:    notifications.EventReservationExpired,
		UserID:  reservation.UserID,
		EventID: reservation.EventID.String(),
		Payload: map[string]interface{}{
			"reservation_id": reservation.ID.String(),
			"seat_id":        reservation.SeatID.String(),
		},
	})
	if err != nil {
		s.log.Warn("event publish failed",
			"reservation_id", reservation.ID.String(), "error", err.Error())
	}
}
