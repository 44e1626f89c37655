package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Priority of a queued reservation request
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority from most to least urgent; dispatch order
// depends on it.
var Priorities = []Priority{PriorityHigh, PriorityNormal, PriorityLow}

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

func (p Priority) String() string {
	return string(p)
}

// State is the lifecycle state of a queued request
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
	StateExpired    State = "EXPIRED"
)

// IsTerminal reports whether the state permits no further transitions
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// ErrorInfo describes why a request failed
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	SeatID  string `json:"seat_id,omitempty"`
}

// Result carries the outcome of a completed request
type Result struct {
	ReservationIDs []uuid.UUID `json:"reservation_ids"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// Request is one queued reservation intent. The id is a ULID so ids sort in
// enqueue order.
type Request struct {
	RequestID  string      `json:"request_id"`
	EventID    uuid.UUID   `json:"event_id"`
	SeatIDs    []uuid.UUID `json:"seat_ids"`
	UserID     string      `json:"user_id"`
	Priority   Priority    `json:"priority"`
	State      State       `json:"state"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     *Result     `json:"result,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
}

// NewRequestID generates a time-ordered, lexicographically-sortable id.
func NewRequestID() string {
	return ulid.Make().String()
}

// EnqueueRequest represents the POST /v2/reservations body
type EnqueueRequest struct {
	EventID  string   `json:"event_id" binding:"required,uuid"`
	SeatIDs  []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
	Priority string   `json:"priority" binding:"omitempty,oneof=high normal low"`
}

// Stats summarizes one event's queue backlog
type Stats struct {
	EventID              uuid.UUID          `json:"event_id"`
	PendingByPriority    map[Priority]int64 `json:"pending_by_priority"`
	TotalPending         int64              `json:"total_pending"`
	EstimatedWaitSeconds float64            `json:"estimated_wait_seconds"`
}
