package queue

import (
	"context"
	"testing"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newServiceFixture() (Service, *MockBroker, *MockStatusStore) {
	broker := new(MockBroker)
	status := new(MockStatusStore)
	svc := NewService(broker, status, NewThroughput(), config.ReservationConfig{MaxSeatsPerBooking: 3})
	return svc, broker, status
}

func TestEnqueueWritesStatusThenStream(t *testing.T) {
	svc, broker, status := newServiceFixture()

	eventID := uuid.New()
	seatIDs := []uuid.UUID{uuid.New(), uuid.New()}

	var created *Request
	status.On("Create", mock.Anything, mock.MatchedBy(func(req *Request) bool {
		created = req
		return req.State == StatePending && req.Priority == PriorityHigh && req.UserID == "u1"
	})).Return(nil)
	broker.On("Enqueue", mock.Anything, mock.MatchedBy(func(req *Request) bool {
		return req == created
	})).Return(nil)

	req, err := svc.Enqueue(context.Background(), eventID, seatIDs, "u1", PriorityHigh)
	require.NoError(t, err)
	assert.NotEmpty(t, req.RequestID)
	assert.Equal(t, StatePending, req.State)

	status.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestEnqueueDefaultsToNormalPriority(t *testing.T) {
	svc, broker, status := newServiceFixture()

	status.On("Create", mock.Anything, mock.Anything).Return(nil)
	broker.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	req, err := svc.Enqueue(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, req.Priority)
}

func TestEnqueueIdsAreSortable(t *testing.T) {
	svc, broker, status := newServiceFixture()

	status.On("Create", mock.Anything, mock.Anything).Return(nil)
	broker.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	first, err := svc.Enqueue(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "u1", PriorityNormal)
	require.NoError(t, err)
	second, err := svc.Enqueue(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "u1", PriorityNormal)
	require.NoError(t, err)

	assert.Less(t, first.RequestID, second.RequestID)
}

func TestEnqueueRejectsBadSeatSets(t *testing.T) {
	svc, broker, _ := newServiceFixture()

	tooMany := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	_, err := svc.Enqueue(context.Background(), uuid.New(), tooMany, "u1", PriorityNormal)
	assert.ErrorIs(t, err, ErrTooManySeats)

	dup := uuid.New()
	_, err = svc.Enqueue(context.Background(), uuid.New(), []uuid.UUID{dup, dup}, "u1", PriorityNormal)
	assert.ErrorIs(t, err, ErrDuplicateSeats)

	broker.AssertNotCalled(t, "Enqueue")
}

func TestCancelOnlyWhilePending(t *testing.T) {
	svc, _, status := newServiceFixture()

	pending := &Request{RequestID: "r1", UserID: "u1", State: StatePending}
	cancelled := &Request{RequestID: "r1", UserID: "u1", State: StateCancelled}

	status.On("Get", mock.Anything, "r1").Return(pending, nil)
	status.On("CancelIfPending", mock.Anything, "r1").Return(cancelled, nil)

	got, err := svc.Cancel(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
}

func TestCancelRejectsProcessingRequest(t *testing.T) {
	svc, _, status := newServiceFixture()

	processing := &Request{RequestID: "r1", UserID: "u1", State: StateProcessing}

	status.On("Get", mock.Anything, "r1").Return(processing, nil)
	status.On("CancelIfPending", mock.Anything, "r1").Return(processing, ErrStateConflict)

	_, err := svc.Cancel(context.Background(), "r1", "u1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelRejectsForeignRequest(t *testing.T) {
	svc, _, status := newServiceFixture()

	status.On("Get", mock.Anything, "r1").
		Return(&Request{RequestID: "r1", UserID: "someone-else", State: StatePending}, nil)

	_, err := svc.Cancel(context.Background(), "r1", "u1")
	assert.ErrorIs(t, err, ErrNotOwner)
	status.AssertNotCalled(t, "CancelIfPending")
}

func TestStatsAggregatesPending(t *testing.T) {
	svc, broker, _ := newServiceFixture()

	eventID := uuid.New()
	broker.On("PendingByPriority", mock.Anything, eventID).Return(map[Priority]int64{
		PriorityHigh:   5,
		PriorityNormal: 2,
		PriorityLow:    1,
	}, nil)

	stats, err := svc.Stats(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.TotalPending)
	assert.Equal(t, int64(5), stats.PendingByPriority[PriorityHigh])
}
