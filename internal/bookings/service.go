package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/notifications"
	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/pkg/lock"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
)

// ErrLockTimeout mirrors the engine's lock-wait failure for the booking path
var ErrLockTimeout = errors.New("could not acquire seat locks in time")

// Service interface defines the contract for booking business logic
type Service interface {
	CreateBooking(ctx context.Context, reservationIDs []uuid.UUID, userID string) (*Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*Booking, error)
	GetUserBookings(ctx context.Context, userID string) ([]Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, userID, paymentID string) (*Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, userID string) (*Booking, error)
}

type service struct {
	repo     Repository
	locker   reservations.Locker
	producer notifications.EventProducer
	cfg      config.ReservationConfig
	log      *logger.Logger
}

// NewService creates a new booking service instance
func NewService(repo Repository, locker reservations.Locker, producer notifications.EventProducer, cfg config.ReservationConfig, log *logger.Logger) Service {
	return &service{
		repo:     repo,
		locker:   locker,
		producer: producer,
		cfg:      cfg,
		log:      log.WithComponent("booking-finalizer"),
	}
}

// CreateBooking converts held reservations into a pending booking under the
// same multi-key seat lock discipline the engine uses.
func (s *service) CreateBooking(ctx context.Context, reservationIDs []uuid.UUID, userID string) (*Booking, error) {
	if len(reservationIDs) == 0 {
		return nil, ErrNoReservations
	}

	_, seatIDs, err := s.repo.LookupSeats(ctx, reservationIDs)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = reservations.SeatLockKey(id)
	}

	ml, err := s.locker.AcquireAll(ctx, keys, s.cfg.LockTimeout, s.cfg.LockMaxWait, s.cfg.LockRetryInterval)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
		return nil, err
	}
	defer ml.Release(context.WithoutCancel(ctx))

	reference, err := generateBookingReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	return s.repo.CreateFromReservations(ctx, reservationIDs, userID, reference)
}

func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

func (s *service) GetBookingByReference(ctx context.Context, reference string) (*Booking, error) {
	return s.repo.GetByReference(ctx, reference)
}

func (s *service) GetUserBookings(ctx context.Context, userID string) ([]Booking, error) {
	return s.repo.GetByUser(ctx, userID)
}

// ConfirmPayment marks the booking paid and confirmed; repeats with the same
// payment id are no-ops.
func (s *service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, userID, paymentID string) (*Booking, error) {
	booking, err := s.repo.ConfirmPayment(ctx, bookingID, userID, paymentID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventBookingConfirmed, booking)
	return booking, nil
}

// CancelBooking cancels the booking. Pending bookings release their seats;
// confirmed bookings keep them (no refund path here).
func (s *service) CancelBooking(ctx context.Context, bookingID uuid.UUID, userID string) (*Booking, error) {
	booking, err := s.repo.Cancel(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.EventBookingCancelled, booking)
	return booking, nil
}

func (s *service) publish(ctx context.Context, eventType notifications.DomainEventType, booking *Booking) {
	if s.producer == nil {
		return
	}
	err := s.producer.Publish(ctx, &notifications.DomainEvent{
		Type:      eventType,
		UserID:    booking.UserID,
		EventID:   booking.EventID.String(),
		BookingID: booking.ID.String(),
		Reference: booking.BookingReference,
		Payload: map[string]interface{}{
			"total_price": booking.TotalPrice,
			"seat_count":  len(booking.Seats),
		},
	})
	if err != nil {
		s.log.Warn("event publish failed",
			"booking_id", booking.ID.String(), "type", string(eventType), "error", err.Error())
	}
}

// generateBookingReference generates a unique booking reference
func generateBookingReference() (string, error) {
	timestamp := time.Now().Format("20060102")

	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("TKT-%s-%s", timestamp, string(randomPart)), nil
}
