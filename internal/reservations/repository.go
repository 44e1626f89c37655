package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/events"
	"github.com/YeonwooSung/ticketing-system/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository owns every transactional state transition of the engine. Each
// method is one transaction; callers hold the seat locks for its duration.
type Repository interface {
	ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string, holdTTL time.Duration) (*ReservationResult, error)
	HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetActiveByUser(ctx context.Context, userID string) ([]Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID, userID string) error
	Extend(ctx context.Context, id uuid.UUID, userID string, holdTTL time.Duration) (time.Time, error)
	ExpiredBatch(ctx context.Context, limit int) ([]Reservation, error)
	ExpireOne(ctx context.Context, reservationID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ReserveSeats performs the all-or-nothing Available→Reserved transition for
// every requested seat. Row-level exclusive locks serialize against any
// concurrent transaction that slipped past the distributed lock; the version
// predicate on each update catches the remainder.
func (r *repository) ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string, holdTTL time.Duration) (*ReservationResult, error) {
	var result *ReservationResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event events.Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).First(&event).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return events.ErrEventNotFound
			}
			return err
		}
		if !event.Status.CanAcceptReservations() {
			return ErrEventNotOnSale
		}

		var rows []seats.Seat
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ? AND event_id = ?", seatIDs, eventID).
			Order("id ASC").
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) != len(seatIDs) {
			return ErrSeatNotFound
		}

		now := time.Now()
		for _, seat := range rows {
			if seat.Status != seats.StatusAvailable {
				return &SeatUnavailableError{SeatID: seat.ID}
			}
			if seat.HoldExpiresAt != nil && seat.HoldExpiresAt.After(now) {
				return &SeatUnavailableError{SeatID: seat.ID}
			}
		}

		expiry := now.Add(holdTTL)
		created := make([]Reservation, 0, len(rows))
		for _, seat := range rows {
			res := tx.Model(&seats.Seat{}).
				Where("id = ? AND version = ?", seat.ID, seat.Version).
				Updates(map[string]interface{}{
					"status":          seats.StatusReserved,
					"holder_id":       userID,
					"hold_expires_at": expiry,
					"version":         seat.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return ErrOptimisticConflict
			}

			reservation := Reservation{
				SeatID:    seat.ID,
				EventID:   eventID,
				UserID:    userID,
				ExpiresAt: expiry,
				Status:    StatusActive,
			}
			if err := tx.Create(&reservation).Error; err != nil {
				return fmt.Errorf("failed to create reservation: %w", err)
			}
			created = append(created, reservation)
		}

		newAvailable := event.AvailableSeats - len(rows)
		if newAvailable < 0 {
			return ErrOptimisticConflict
		}
		updates := map[string]interface{}{"available_seats": newAvailable}
		if newAvailable == 0 {
			updates["status"] = events.StatusSoldOut
		}
		if err := tx.Model(&events.Event{}).Where("id = ?", eventID).Updates(updates).Error; err != nil {
			return err
		}

		result = &ReservationResult{Reservations: created, ExpiresAt: expiry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HeldByUser reports whether every requested seat is already Reserved by
// user with a live active reservation. Queue workers use it to complete a
// redelivered request whose first attempt committed but never reported.
func (r *repository) HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, bool, error) {
	var held int64
	err := r.db.WithContext(ctx).Model(&seats.Seat{}).
		Where("id IN ? AND event_id = ? AND status = ? AND holder_id = ?",
			seatIDs, eventID, seats.StatusReserved, userID).
		Count(&held).Error
	if err != nil {
		return nil, false, err
	}
	if held != int64(len(seatIDs)) {
		return nil, false, nil
	}

	var rows []Reservation
	err = r.db.WithContext(ctx).
		Where("seat_id IN ? AND user_id = ? AND status = ?", seatIDs, userID, StatusActive).
		Find(&rows).Error
	if err != nil {
		return nil, false, err
	}
	if len(rows) != len(seatIDs) {
		return nil, false, nil
	}

	return &ReservationResult{Reservations: rows, ExpiresAt: rows[0].ExpiresAt}, true, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) GetActiveByUser(ctx context.Context, userID string) ([]Reservation, error) {
	var rows []Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, StatusActive).
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// Cancel transitions an active reservation to Cancelled and returns its seat
// to the available pool when the hold is still in place.
func (r *repository) Cancel(ctx context.Context, id uuid.UUID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&reservation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if reservation.UserID != userID {
			return ErrNotOwner
		}
		if reservation.Status != StatusActive {
			return ErrNotActive
		}

		if err := tx.Model(&Reservation{}).Where("id = ?", id).
			Update("status", StatusCancelled).Error; err != nil {
			return err
		}

		return releaseSeat(tx, reservation.SeatID, reservation.EventID, userID)
	})
}

// Extend pushes the hold expiry of an active reservation forward.
func (r *repository) Extend(ctx context.Context, id uuid.UUID, userID string, holdTTL time.Duration) (time.Time, error) {
	var newExpiry time.Time

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&reservation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if reservation.UserID != userID {
			return ErrNotOwner
		}
		if reservation.Status != StatusActive {
			return ErrNotActive
		}
		now := time.Now()
		if reservation.ExpiresAt.Before(now) {
			return ErrAlreadyExpired
		}

		newExpiry = now.Add(holdTTL)
		if err := tx.Model(&Reservation{}).Where("id = ?", id).
			Update("expires_at", newExpiry).Error; err != nil {
			return err
		}

		res := tx.Model(&seats.Seat{}).
			Where("id = ? AND status = ? AND holder_id = ?", reservation.SeatID, seats.StatusReserved, userID).
			Updates(map[string]interface{}{
				"hold_expires_at": newExpiry,
				"version":         gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrOptimisticConflict
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

// ExpiredBatch selects the oldest expired active reservations, bounded so a
// single sweep never turns into a long transaction.
func (r *repository) ExpiredBatch(ctx context.Context, limit int) ([]Reservation, error) {
	var rows []Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", StatusActive, time.Now()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ExpireOne sweeps one reservation. The seat is released only when it is
// still Reserved by the same holder with a lapsed hold; a seat promoted to
// Booked between selection and lock acquisition is left alone.
func (r *repository) ExpireOne(ctx context.Context, reservationID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", reservationID).First(&reservation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if reservation.Status != StatusActive || reservation.ExpiresAt.After(time.Now()) {
			return nil
		}

		var seat seats.Seat
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", reservation.SeatID).First(&seat).Error
		if err != nil {
			return err
		}

		if seat.Status == seats.StatusBooked {
			// Finalized while the sweep was pending; the booking path owns it.
			return nil
		}

		if seat.Status == seats.StatusReserved &&
			seat.HolderID != nil && *seat.HolderID == reservation.UserID &&
			seat.HoldExpiresAt != nil && !seat.HoldExpiresAt.After(time.Now()) {
			if err := releaseSeat(tx, seat.ID, reservation.EventID, reservation.UserID); err != nil {
				return err
			}
		}

		return tx.Model(&Reservation{}).Where("id = ?", reservationID).
			Update("status", StatusExpired).Error
	})
}

// releaseSeat resets a seat held by userID back to Available and restores
// the event's availability counter, reopening sale on a sold-out event.
func releaseSeat(tx *gorm.DB, seatID, eventID uuid.UUID, userID string) error {
	res := tx.Model(&seats.Seat{}).
		Where("id = ? AND status = ? AND holder_id = ?", seatID, seats.StatusReserved, userID).
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
	if res.RowsAffected == 0 {
		// Hold already gone; nothing to restore.
		return nil
	}

	return tx.Model(&events.Event{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats + 1"),
			"status": gorm.Expr(
				"CASE WHEN status = ? THEN ? ELSE status END",
				events.StatusSoldOut, events.StatusOnSale,
			),
		}).Error
}
