package seats

import (
	"context"
	"errors"
	"fmt"

	"github.com/YeonwooSung/ticketing-system/internal/events"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

type Repository interface {
	CreateBatch(ctx context.Context, eventID uuid.UUID, seats []Seat) error
	GetByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error)
	GetAvailableByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateBatch inserts the seats and grows the event's available counter in
// one transaction, keeping available_seats equal to the AVAILABLE count.
func (r *repository) CreateBatch(ctx context.Context, eventID uuid.UUID, batch []Seat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event events.Event
		if err := tx.Where("id = ?", eventID).First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to create seats: %w", err)
		}

		err := tx.Model(&events.Event{}).Where("id = ?", eventID).
			Updates(map[string]interface{}{
				"available_seats": gorm.Expr("available_seats + ?", len(batch)),
				"capacity":        gorm.Expr("GREATEST(capacity, available_seats + ?)", len(batch)),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update event counters: %w", err)
		}

		return nil
	})
}

func (r *repository) GetByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("seat_number ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) GetAvailableByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, StatusAvailable).
		Order("seat_number ASC").
		Find(&seats).Error
	return seats, err
}
