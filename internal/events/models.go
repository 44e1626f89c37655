package events

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name           string     `json:"name" gorm:"not null"`
	Venue          string     `json:"venue"`
	Capacity       int        `json:"capacity" gorm:"not null;check:capacity >= 0"`
	AvailableSeats int        `json:"available_seats" gorm:"not null;check:available_seats >= 0"`
	Status         Status     `json:"status" gorm:"not null;default:'UPCOMING'"`
	SaleStartTime  *time.Time `json:"sale_start_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}
