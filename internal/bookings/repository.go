package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/events"
	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrNotOwner             = errors.New("booking does not belong to user")
	ErrNotPending           = errors.New("booking is not pending")
	ErrAlreadyCancelled     = errors.New("booking is already cancelled")
	ErrPaymentMismatch      = errors.New("payment id does not match the confirmed payment")
	ErrNoReservations       = errors.New("at least one reservation is required")
	ErrMixedEvents          = errors.New("reservations span more than one event")
	ErrReservationNotActive = errors.New("reservation is not active")
	ErrReservationExpired   = errors.New("reservation has expired")
	ErrReservationNotOwned  = errors.New("reservation does not belong to user")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrSeatVersionConflict  = errors.New("seat version changed during finalization")
	ErrSeatNotHeld          = errors.New("seat is no longer held by the reservation")
)

type Repository interface {
	LookupSeats(ctx context.Context, reservationIDs []uuid.UUID) (eventID uuid.UUID, seatIDs []uuid.UUID, err error)
	CreateFromReservations(ctx context.Context, reservationIDs []uuid.UUID, userID, reference string) (*Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByReference(ctx context.Context, reference string) (*Booking, error)
	GetByUser(ctx context.Context, userID string) ([]Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, userID, paymentID string) (*Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, userID string) (*Booking, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// LookupSeats resolves the seats behind a set of reservations so the caller
// can derive lock keys before opening the finalization transaction.
func (r *repository) LookupSeats(ctx context.Context, reservationIDs []uuid.UUID) (uuid.UUID, []uuid.UUID, error) {
	var rows []reservations.Reservation
	err := r.db.WithContext(ctx).
		Where("id IN ?", reservationIDs).
		Find(&rows).Error
	if err != nil {
		return uuid.Nil, nil, err
	}
	if len(rows) != len(reservationIDs) {
		return uuid.Nil, nil, ErrReservationNotFound
	}

	eventID := rows[0].EventID
	seatIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.EventID != eventID {
			return uuid.Nil, nil, ErrMixedEvents
		}
		seatIDs = append(seatIDs, row.SeatID)
	}
	return eventID, seatIDs, nil
}

// CreateFromReservations converts a set of active holds into one pending
// booking. Every seat moves Reserved→Booked and every reservation →
// Confirmed, or nothing changes.
func (r *repository) CreateFromReservations(ctx context.Context, reservationIDs []uuid.UUID, userID, reference string) (*Booking, error) {
	var booking *Booking

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holds []reservations.Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", reservationIDs).
			Order("id ASC").
			Find(&holds).Error
		if err != nil {
			return err
		}
		if len(holds) != len(reservationIDs) {
			return ErrReservationNotFound
		}

		now := time.Now()
		eventID := holds[0].EventID
		seatIDs := make([]uuid.UUID, 0, len(holds))
		for _, hold := range holds {
			if hold.EventID != eventID {
				return ErrMixedEvents
			}
			if hold.UserID != userID {
				return ErrReservationNotOwned
			}
			if hold.Status != reservations.StatusActive {
				return ErrReservationNotActive
			}
			if hold.ExpiresAt.Before(now) {
				return ErrReservationExpired
			}
			seatIDs = append(seatIDs, hold.SeatID)
		}

		var seatRows []seats.Seat
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", seatIDs).
			Order("id ASC").
			Find(&seatRows).Error
		if err != nil {
			return err
		}
		if len(seatRows) != len(seatIDs) {
			return ErrSeatNotHeld
		}

		var total float64
		for _, seat := range seatRows {
			if seat.Status != seats.StatusReserved || seat.HolderID == nil || *seat.HolderID != userID {
				return ErrSeatNotHeld
			}
			total += seat.Price
		}

		booking = &Booking{
			EventID:          eventID,
			UserID:           userID,
			TotalPrice:       total,
			BookingReference: reference,
			Status:           StatusPending,
			PaymentStatus:    PaymentPending,
		}
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		for _, seat := range seatRows {
			res := tx.Model(&seats.Seat{}).
				Where("id = ? AND version = ?", seat.ID, seat.Version).
				Updates(map[string]interface{}{
					"status":          seats.StatusBooked,
					"booking_id":      booking.ID,
					"hold_expires_at": nil,
					"version":         seat.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return ErrSeatVersionConflict
			}

			line := BookingSeat{
				BookingID: booking.ID,
				SeatID:    seat.ID,
				Price:     seat.Price,
			}
			if err := tx.Create(&line).Error; err != nil {
				return fmt.Errorf("failed to create booking seat: %w", err)
			}
			booking.Seats = append(booking.Seats, line)
		}

		return tx.Model(&reservations.Reservation{}).
			Where("id IN ?", reservationIDs).
			Update("status", reservations.StatusConfirmed).Error
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("booking_reference = ?", reference).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByUser(ctx context.Context, userID string) ([]Booking, error) {
	var rows []Booking
	err := r.db.WithContext(ctx).
		Preload("Seats").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ConfirmPayment flips a pending booking to Confirmed. Repeating the call
// with the identical payment id is a no-op; a different id is a conflict.
func (r *repository) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, userID, paymentID string) (*Booking, error) {
	var booking Booking

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", bookingID).
			First(&booking).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.UserID != userID {
			return ErrNotOwner
		}

		if booking.Status == StatusConfirmed {
			if booking.PaymentID != nil && *booking.PaymentID == paymentID {
				return nil // idempotent repeat
			}
			return ErrPaymentMismatch
		}
		if booking.Status != StatusPending {
			return ErrNotPending
		}

		booking.Status = StatusConfirmed
		booking.PaymentStatus = PaymentSuccess
		booking.PaymentID = &paymentID
		return tx.Model(&Booking{}).Where("id = ?", bookingID).
			Updates(map[string]interface{}{
				"status":         StatusConfirmed,
				"payment_status": PaymentSuccess,
				"payment_id":     paymentID,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}

// Cancel cancels a booking. A pending booking returns its seats to the
// available pool; a confirmed booking keeps them attached for audit.
func (r *repository) Cancel(ctx context.Context, bookingID uuid.UUID, userID string) (*Booking, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var booking Booking
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", bookingID).
			First(&booking).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.UserID != userID {
			return ErrNotOwner
		}
		if booking.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}

		if booking.Status == StatusPending {
			res := tx.Model(&seats.Seat{}).
				Where("booking_id = ? AND status = ?", bookingID, seats.StatusBooked).
				Updates(map[string]interface{}{
					"status":          seats.StatusAvailable,
					"holder_id":       nil,
					"hold_expires_at": nil,
					"booking_id":      nil,
					"version":         gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				err = tx.Model(&events.Event{}).
					Where("id = ?", booking.EventID).
					Updates(map[string]interface{}{
						"available_seats": gorm.Expr("available_seats + ?", res.RowsAffected),
						"status": gorm.Expr(
							"CASE WHEN status = ? THEN ? ELSE status END",
							events.StatusSoldOut, events.StatusOnSale,
						),
					}).Error
				if err != nil {
					return err
				}
			}
		}

		return tx.Model(&Booking{}).Where("id = ?", bookingID).
			Update("status", StatusCancelled).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, bookingID)
}
