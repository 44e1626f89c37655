package queue

import (
	"context"
	"errors"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
)

// Notifier publishes request snapshots to live listeners. The broadcast path
// (Redis pub/sub into the notification hub) is provided by the notifications
// package.
type Notifier interface {
	PublishRequest(ctx context.Context, req *Request) error
}

// Worker is a long-running consumer of the priority streams. Multiple
// workers may run under the same consumer group name.
type Worker struct {
	name       string
	broker     Broker
	status     StatusStore
	engine     reservations.Engine
	notifier   Notifier
	throughput *Throughput
	log        *logger.Logger
}

// NewWorker creates a queue worker with a stable consumer name
func NewWorker(name string, broker Broker, status StatusStore, engine reservations.Engine, notifier Notifier, throughput *Throughput, log *logger.Logger) *Worker {
	return &Worker{
		name:       name,
		broker:     broker,
		status:     status,
		engine:     engine,
		notifier:   notifier,
		throughput: throughput,
		log:        log.WithComponent("queue-worker:" + name),
	}
}

// Start drains scheduling rounds until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("queue worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("queue worker stopping")
			return
		default:
		}

		msgs, err := w.broker.ReadRound(ctx, w.name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("read round failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			w.Process(ctx, msg)
		}
	}
}

// StartReclaimer periodically rescues messages stuck in another consumer's
// pending list and dead-letters messages that exhausted their delivery
// budget.
func (w *Worker) StartReclaimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("pending-entry reclaimer started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, exhausted, err := w.broker.Reclaim(ctx, w.name)
			if err != nil {
				w.log.Error("reclaim scan failed", "error", err.Error())
				continue
			}
			for _, msg := range exhausted {
				w.deadLetter(ctx, msg)
			}
			for _, msg := range reclaimed {
				w.Process(ctx, msg)
			}
		}
	}
}

// Process handles one delivered message. A message is acknowledged exactly
// when its request reached a terminal state (or its status record is gone);
// transient failures leave it pending for reclaim.
func (w *Worker) Process(ctx context.Context, msg Message) {
	req := msg.Request
	log := w.log.WithRequestID(req.RequestID)

	current, err := w.status.Get(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, ErrStatusNotFound) {
			// Status TTL lapsed while queued; nobody is waiting for this.
			w.ack(ctx, msg)
			return
		}
		log.Error("status read failed", "error", err.Error())
		return
	}

	if current.State != StatePending && current.State != StateProcessing {
		if current.State == StateCancelled {
			w.notify(ctx, current)
		}
		w.ack(ctx, msg)
		return
	}

	// A reclaimed message whose request is already PROCESSING resumes here
	// without a second transition.
	if current.State == StatePending {
		processing, err := w.status.MarkProcessing(ctx, req.RequestID)
		if err != nil {
			if errors.Is(err, ErrStateConflict) {
				// Lost the race, usually to a cancel.
				if processing != nil && processing.State == StateCancelled {
					w.notify(ctx, processing)
				}
				w.ack(ctx, msg)
				return
			}
			log.Error("failed to mark processing", "error", err.Error())
			return
		}
		w.notify(ctx, processing)
	}

	result, err := w.engine.Reserve(ctx, req.EventID, req.SeatIDs, req.UserID)
	if err == nil {
		w.complete(ctx, msg, &Result{
			ReservationIDs: reservationIDs(result),
			ExpiresAt:      result.ExpiresAt,
		})
		return
	}

	if !reservations.IsDomainError(err) {
		// Transient: leave unacknowledged for PEL reclaim.
		log.Warn("transient reserve failure, leaving for redelivery", "error", err.Error())
		return
	}

	// A redelivered request may have committed on a previous attempt; its
	// seats being held by this user for this event is the success signal.
	var unavailable *reservations.SeatUnavailableError
	if errors.As(err, &unavailable) {
		held, ok, checkErr := w.engine.HeldByUser(ctx, req.EventID, req.SeatIDs, req.UserID)
		if checkErr == nil && ok {
			w.complete(ctx, msg, &Result{
				ReservationIDs: reservationIDs(held),
				ExpiresAt:      held.ExpiresAt,
			})
			return
		}
	}

	failed, failErr := w.status.Fail(ctx, req.RequestID, classifyError(err))
	if failErr != nil {
		log.Error("failed to record failure", "error", failErr.Error())
		return
	}
	w.notify(ctx, failed)
	w.ack(ctx, msg)
}

func (w *Worker) complete(ctx context.Context, msg Message, result *Result) {
	completed, err := w.status.Complete(ctx, msg.Request.RequestID, result)
	if err != nil {
		// Seats are committed; keep the message pending so the status write
		// is retried through reclaim. The held-seat check makes that safe.
		w.log.WithRequestID(msg.Request.RequestID).
			Error("failed to record completion", "error", err.Error())
		return
	}
	w.notify(ctx, completed)
	w.throughput.Observe()
	w.ack(ctx, msg)
}

func (w *Worker) deadLetter(ctx context.Context, msg Message) {
	log := w.log.WithRequestID(msg.Request.RequestID)

	failed, err := w.status.Fail(ctx, msg.Request.RequestID, &ErrorInfo{
		Kind:    "ExceededRetries",
		Message: "request exceeded its delivery budget",
	})
	if err != nil && !errors.Is(err, ErrStatusNotFound) && !errors.Is(err, ErrStateConflict) {
		log.Error("failed to mark dead-lettered request", "error", err.Error())
	}
	if failed != nil {
		w.notify(ctx, failed)
	}

	if err := w.broker.DeadLetter(ctx, msg, "ExceededRetries"); err != nil {
		log.Error("dead-letter append failed", "error", err.Error())
	}
}

func (w *Worker) ack(ctx context.Context, msg Message) {
	if err := w.broker.Ack(ctx, msg); err != nil {
		w.log.Error("ack failed", "stream_id", msg.StreamID, "error", err.Error())
	}
}

func (w *Worker) notify(ctx context.Context, req *Request) {
	if w.notifier == nil || req == nil {
		return
	}
	if err := w.notifier.PublishRequest(ctx, req); err != nil {
		w.log.Warn("notification publish failed", "request_id", req.RequestID, "error", err.Error())
	}
}

func reservationIDs(result *reservations.ReservationResult) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(result.Reservations))
	for _, r := range result.Reservations {
		ids = append(ids, r.ID)
	}
	return ids
}

// classifyError converts engine errors into the typed error descriptor
// stored with a failed request.
func classifyError(err error) *ErrorInfo {
	var unavailable *reservations.SeatUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return &ErrorInfo{Kind: "SeatUnavailable", Message: err.Error(), SeatID: unavailable.SeatID.String()}
	case errors.Is(err, reservations.ErrEventNotOnSale):
		return &ErrorInfo{Kind: "EventNotOnSale", Message: err.Error()}
	case errors.Is(err, reservations.ErrSeatNotFound):
		return &ErrorInfo{Kind: "SeatNotFound", Message: err.Error()}
	default:
		return &ErrorInfo{Kind: "Validation", Message: err.Error()}
	}
}
