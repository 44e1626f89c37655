package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds database constraints the engine relies on for
// concurrency control. AutoMigrate cannot express all of them.
func MigrateConstraints(db *gorm.DB) error {
	// A seat number exists once per event
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_seat_number_per_event
		ON seats (event_id, seat_number);
	`).Error
	if err != nil {
		return err
	}

	// Booking references are globally unique
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_booking_reference
		ON bookings (booking_reference);
	`).Error
	if err != nil {
		return err
	}

	// A seat appears once per booking
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_seat_per_booking
		ON booking_seats (booking_id, seat_id);
	`).Error
	if err != nil {
		return err
	}

	// Availability queries filter on (event_id, status)
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seats_event_status
		ON seats (event_id, status);
	`).Error
	if err != nil {
		return err
	}

	// Sweeper scans active reservations by expiry
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_status_expires
		ON reservations (status, expires_at);
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_user
		ON reservations (user_id);
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_user
		ON bookings (user_id);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
