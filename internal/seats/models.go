package seats

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusBooked    Status = "BOOKED"
	StatusBlocked   Status = "BLOCKED"
)

// IsValid checks if the seat status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusBooked, StatusBlocked:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Seat is one sellable unit of an event's inventory. Holder, hold expiry
// and booking id are only set in the states that define them: holder is
// non-null iff RESERVED or BOOKED, hold_expires_at iff RESERVED,
// booking_id iff BOOKED. Version increments on every transition.
type Seat struct {
	ID            uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	EventID       uuid.UUID  `json:"event_id" gorm:"not null;type:uuid;index"`
	SeatNumber    string     `json:"seat_number" gorm:"not null"`
	Price         float64    `json:"price" gorm:"not null;check:price >= 0"`
	Status        Status     `json:"status" gorm:"not null;default:'AVAILABLE'"`
	Version       int64      `json:"version" gorm:"not null;default:0"`
	HolderID      *string    `json:"holder_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty" gorm:"type:uuid"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Seat) TableName() string {
	return "seats"
}

// CreateSeatsRequest represents the request to add seats to an event
type CreateSeatsRequest struct {
	Seats []SeatDefinition `json:"seats" binding:"required,min=1,dive"`
}

// SeatDefinition is one seat in a bulk-create request
type SeatDefinition struct {
	SeatNumber string  `json:"seat_number" binding:"required"`
	Price      float64 `json:"price" binding:"min=0"`
}
