package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/reservations"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBroker is a mock implementation of Broker
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Enqueue(ctx context.Context, req *Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBroker) ReadRound(ctx context.Context, consumer string) ([]Message, error) {
	args := m.Called(ctx, consumer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockBroker) Ack(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockBroker) DeadLetter(ctx context.Context, msg Message, reason string) error {
	args := m.Called(ctx, msg, reason)
	return args.Error(0)
}

func (m *MockBroker) Reclaim(ctx context.Context, consumer string) ([]Message, []Message, error) {
	args := m.Called(ctx, consumer)
	reclaimed, _ := args.Get(0).([]Message)
	exhausted, _ := args.Get(1).([]Message)
	return reclaimed, exhausted, args.Error(2)
}

func (m *MockBroker) PendingByPriority(ctx context.Context, eventID uuid.UUID) (map[Priority]int64, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[Priority]int64), args.Error(1)
}

// MockStatusStore is a mock implementation of StatusStore
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) Create(ctx context.Context, req *Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockStatusStore) Get(ctx context.Context, requestID string) (*Request, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Request), args.Error(1)
}

func (m *MockStatusStore) MarkProcessing(ctx context.Context, requestID string) (*Request, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Request), args.Error(1)
}

func (m *MockStatusStore) Complete(ctx context.Context, requestID string, result *Result) (*Request, error) {
	args := m.Called(ctx, requestID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Request), args.Error(1)
}

func (m *MockStatusStore) Fail(ctx context.Context, requestID string, errInfo *ErrorInfo) (*Request, error) {
	args := m.Called(ctx, requestID, errInfo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Request), args.Error(1)
}

func (m *MockStatusStore) CancelIfPending(ctx context.Context, requestID string) (*Request, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Request), args.Error(1)
}

// MockEngine is a mock implementation of reservations.Engine
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Reserve(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*reservations.ReservationResult, error) {
	args := m.Called(ctx, eventID, seatIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservations.ReservationResult), args.Error(1)
}

func (m *MockEngine) Cancel(ctx context.Context, reservationID uuid.UUID, userID string) error {
	args := m.Called(ctx, reservationID, userID)
	return args.Error(0)
}

func (m *MockEngine) Extend(ctx context.Context, reservationID uuid.UUID, userID string) (time.Time, error) {
	args := m.Called(ctx, reservationID, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockEngine) Get(ctx context.Context, reservationID uuid.UUID) (*reservations.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservations.Reservation), args.Error(1)
}

func (m *MockEngine) ListActive(ctx context.Context, userID string) ([]reservations.Reservation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reservations.Reservation), args.Error(1)
}

func (m *MockEngine) HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*reservations.ReservationResult, bool, error) {
	args := m.Called(ctx, eventID, seatIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*reservations.ReservationResult), args.Bool(1), args.Error(2)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishRequest(ctx context.Context, req *Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type workerFixture struct {
	broker   *MockBroker
	status   *MockStatusStore
	engine   *MockEngine
	notifier *MockNotifier
	worker   *Worker
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		broker:   new(MockBroker),
		status:   new(MockStatusStore),
		engine:   new(MockEngine),
		notifier: new(MockNotifier),
	}
	f.worker = NewWorker("test-worker", f.broker, f.status, f.engine, f.notifier, NewThroughput(), logger.GetDefault())
	return f
}

func pendingMessage() (Message, *Request) {
	req := &Request{
		RequestID:  NewRequestID(),
		EventID:    uuid.New(),
		SeatIDs:    []uuid.UUID{uuid.New(), uuid.New()},
		UserID:     "u1",
		Priority:   PriorityNormal,
		State:      StatePending,
		EnqueuedAt: time.Now(),
	}
	return Message{EventID: req.EventID, Priority: req.Priority, StreamID: "1-0", Request: req}, req
}

func withState(req *Request, state State) *Request {
	clone := *req
	clone.State = state
	return &clone
}

func TestProcessCompletesPendingRequest(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	reservationID := uuid.New()
	expiry := time.Now().Add(10 * time.Minute)
	engineResult := &reservations.ReservationResult{
		Reservations: []reservations.Reservation{{ID: reservationID}},
		ExpiresAt:    expiry,
	}

	f.status.On("Get", mock.Anything, req.RequestID).Return(req, nil)
	f.status.On("MarkProcessing", mock.Anything, req.RequestID).
		Return(withState(req, StateProcessing), nil)
	f.engine.On("Reserve", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(engineResult, nil)
	f.status.On("Complete", mock.Anything, req.RequestID,
		&Result{ReservationIDs: []uuid.UUID{reservationID}, ExpiresAt: expiry}).
		Return(withState(req, StateCompleted), nil)
	f.notifier.On("PublishRequest", mock.Anything, mock.Anything).Return(nil)
	f.broker.On("Ack", mock.Anything, msg).Return(nil)

	f.worker.Process(context.Background(), msg)

	f.status.AssertExpectations(t)
	f.engine.AssertExpectations(t)
	f.broker.AssertExpectations(t)

	// Processing then terminal snapshot were both published.
	f.notifier.AssertNumberOfCalls(t, "PublishRequest", 2)
}

func TestProcessSkipsCancelledRequest(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	f.status.On("Get", mock.Anything, req.RequestID).
		Return(withState(req, StateCancelled), nil)
	f.notifier.On("PublishRequest", mock.Anything, mock.Anything).Return(nil)
	f.broker.On("Ack", mock.Anything, msg).Return(nil)

	f.worker.Process(context.Background(), msg)

	// The engine is never invoked for a cancelled request.
	f.engine.AssertNotCalled(t, "Reserve")
	f.broker.AssertCalled(t, "Ack", mock.Anything, msg)
}

func TestProcessFailsOnDomainError(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	blocked := req.SeatIDs[0]

	f.status.On("Get", mock.Anything, req.RequestID).Return(req, nil)
	f.status.On("MarkProcessing", mock.Anything, req.RequestID).
		Return(withState(req, StateProcessing), nil)
	f.engine.On("Reserve", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(nil, &reservations.SeatUnavailableError{SeatID: blocked})
	f.engine.On("HeldByUser", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(nil, false, nil)
	f.status.On("Fail", mock.Anything, req.RequestID, mock.MatchedBy(func(info *ErrorInfo) bool {
		return info.Kind == "SeatUnavailable" && info.SeatID == blocked.String()
	})).Return(withState(req, StateFailed), nil)
	f.notifier.On("PublishRequest", mock.Anything, mock.Anything).Return(nil)
	f.broker.On("Ack", mock.Anything, msg).Return(nil)

	f.worker.Process(context.Background(), msg)

	f.status.AssertExpectations(t)
	f.broker.AssertCalled(t, "Ack", mock.Anything, msg)
}

func TestProcessLeavesTransientFailureUnacked(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	f.status.On("Get", mock.Anything, req.RequestID).Return(req, nil)
	f.status.On("MarkProcessing", mock.Anything, req.RequestID).
		Return(withState(req, StateProcessing), nil)
	f.engine.On("Reserve", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(nil, errors.New("dial tcp: connection refused"))
	f.notifier.On("PublishRequest", mock.Anything, mock.Anything).Return(nil)

	f.worker.Process(context.Background(), msg)

	// No ack and no terminal state: the PEL reclaim will redeliver.
	f.broker.AssertNotCalled(t, "Ack")
	f.status.AssertNotCalled(t, "Fail")
	f.status.AssertNotCalled(t, "Complete")
}

func TestProcessCompletesRedeliveredCommittedRequest(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	expiry := time.Now().Add(10 * time.Minute)
	held := &reservations.ReservationResult{
		Reservations: []reservations.Reservation{{ID: uuid.New()}},
		ExpiresAt:    expiry,
	}

	f.status.On("Get", mock.Anything, req.RequestID).Return(req, nil)
	f.status.On("MarkProcessing", mock.Anything, req.RequestID).
		Return(withState(req, StateProcessing), nil)
	// First attempt committed, so this delivery sees the seats as taken...
	f.engine.On("Reserve", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(nil, &reservations.SeatUnavailableError{SeatID: req.SeatIDs[0]})
	// ...but they are held by this very user: treat as success.
	f.engine.On("HeldByUser", mock.Anything, req.EventID, req.SeatIDs, "u1").
		Return(held, true, nil)
	f.status.On("Complete", mock.Anything, req.RequestID, mock.Anything).
		Return(withState(req, StateCompleted), nil)
	f.notifier.On("PublishRequest", mock.Anything, mock.Anything).Return(nil)
	f.broker.On("Ack", mock.Anything, msg).Return(nil)

	f.worker.Process(context.Background(), msg)

	f.status.AssertNotCalled(t, "Fail")
	f.broker.AssertCalled(t, "Ack", mock.Anything, msg)
}

func TestProcessAcksWhenStatusExpired(t *testing.T) {
	f := newWorkerFixture()
	msg, req := pendingMessage()

	f.status.On("Get", mock.Anything, req.RequestID).Return(nil, ErrStatusNotFound)
	f.broker.On("Ack", mock.Anything, msg).Return(nil)

	f.worker.Process(context.Background(), msg)

	f.engine.AssertNotCalled(t, "Reserve")
	f.broker.AssertCalled(t, "Ack", mock.Anything, msg)
	assert.Equal(t, StatePending, req.State) // nothing mutated the payload
}
