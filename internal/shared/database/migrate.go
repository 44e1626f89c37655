package database

import (
	"github.com/YeonwooSung/ticketing-system/internal/bookings"
	"github.com/YeonwooSung/ticketing-system/internal/events"
	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/internal/seats"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	// Run auto-migration first
	err := db.AutoMigrate(
		// Events own the seat inventory
		&events.Event{},
		&seats.Seat{},

		// Holds
		&reservations.Reservation{},

		// Bookings and their seat lines
		&bookings.Booking{},
		&bookings.BookingSeat{},
	)
	if err != nil {
		return err
	}

	// Add critical constraints for concurrency control
	return MigrateConstraints(db)
}
