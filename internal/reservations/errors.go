package reservations

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors produced by the engine. Infrastructure errors from the
// storage drivers bubble up unwrapped.
var (
	ErrEventNotOnSale      = errors.New("event is not on sale")
	ErrOptimisticConflict  = errors.New("seat version changed during transaction")
	ErrAlreadyExpired      = errors.New("reservation has already expired")
	ErrNotOwner            = errors.New("reservation does not belong to user")
	ErrNotActive           = errors.New("reservation is not active")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrNoSeats             = errors.New("at least one seat is required")
	ErrTooManySeats        = errors.New("seat count exceeds the per-booking maximum")
	ErrDuplicateSeats      = errors.New("seat ids must be distinct")
	ErrLockTimeout         = errors.New("could not acquire seat locks in time")
)

// SeatUnavailableError identifies the first seat that blocked an
// all-or-nothing reservation attempt.
type SeatUnavailableError struct {
	SeatID uuid.UUID
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s is not available", e.SeatID)
}

// IsDomainError reports whether err is a terminal domain outcome rather
// than a transient infrastructure failure. Queue workers use this to decide
// between acking a message as Failed and leaving it for redelivery.
func IsDomainError(err error) bool {
	var unavailable *SeatUnavailableError
	switch {
	case errors.As(err, &unavailable),
		errors.Is(err, ErrEventNotOnSale),
		errors.Is(err, ErrNoSeats),
		errors.Is(err, ErrTooManySeats),
		errors.Is(err, ErrDuplicateSeats),
		errors.Is(err, ErrSeatNotFound):
		return true
	}
	return false
}
