package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a set of seats a user committed to purchasing. Seats stay
// attached for the life of the booking; a cancelled confirmed booking keeps
// them for audit.
type Booking struct {
	ID               uuid.UUID     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	EventID          uuid.UUID     `json:"event_id" gorm:"not null;type:uuid;index"`
	UserID           string        `json:"user_id" gorm:"not null"`
	TotalPrice       float64       `json:"total_price" gorm:"not null"`
	BookingReference string        `json:"booking_reference" gorm:"not null"`
	Status           Status        `json:"status" gorm:"not null;default:'PENDING'"`
	PaymentStatus    PaymentStatus `json:"payment_status" gorm:"not null;default:'PENDING'"`
	PaymentID        *string       `json:"payment_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	Seats            []BookingSeat `json:"seats" gorm:"foreignKey:BookingID;references:ID"`
}

// TableName specifies the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

// BookingSeat is one line of a booking, referencing exactly one booked seat
type BookingSeat struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	BookingID uuid.UUID `json:"booking_id" gorm:"not null;type:uuid;index"`
	SeatID    uuid.UUID `json:"seat_id" gorm:"not null;type:uuid"`
	Price     float64   `json:"price" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (BookingSeat) TableName() string {
	return "booking_seats"
}

// CreateBookingRequest represents the request to finalize held reservations
type CreateBookingRequest struct {
	ReservationIDs []string `json:"reservation_ids" binding:"required,min=1,dive,uuid"`
}

// ConfirmPaymentRequest carries the external payment identifier
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}
