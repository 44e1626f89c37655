package reservations

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the reservation status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusExpired || s == StatusCancelled
}

// Reservation is a time-bounded hold of one seat by one user. It is created
// atomically with the seat's Available→Reserved transition.
type Reservation struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SeatID    uuid.UUID `json:"seat_id" gorm:"not null;type:uuid;index"`
	EventID   uuid.UUID `json:"event_id" gorm:"not null;type:uuid;index"`
	UserID    string    `json:"user_id" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Status    Status    `json:"status" gorm:"not null;default:'ACTIVE'"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Reservation) TableName() string {
	return "reservations"
}

// ReservationResult is the outcome of a successful reserve call
type ReservationResult struct {
	Reservations []Reservation `json:"reservations"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// CreateReservationRequest represents the Path A request body
type CreateReservationRequest struct {
	EventID string   `json:"event_id" binding:"required,uuid"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}
