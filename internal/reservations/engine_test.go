package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/YeonwooSung/ticketing-system/internal/shared/config"
	"github.com/YeonwooSung/ticketing-system/pkg/lock"
	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ReserveSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string, holdTTL time.Duration) (*ReservationResult, error) {
	args := m.Called(ctx, eventID, seatIDs, userID, holdTTL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ReservationResult), args.Error(1)
}

func (m *MockRepository) HeldByUser(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, userID string) (*ReservationResult, bool, error) {
	args := m.Called(ctx, eventID, seatIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*ReservationResult), args.Bool(1), args.Error(2)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Reservation), args.Error(1)
}

func (m *MockRepository) GetActiveByUser(ctx context.Context, userID string) ([]Reservation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Reservation), args.Error(1)
}

func (m *MockRepository) Cancel(ctx context.Context, id uuid.UUID, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockRepository) Extend(ctx context.Context, id uuid.UUID, userID string, holdTTL time.Duration) (time.Time, error) {
	args := m.Called(ctx, id, userID, holdTTL)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockRepository) ExpiredBatch(ctx context.Context, limit int) ([]Reservation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Reservation), args.Error(1)
}

func (m *MockRepository) ExpireOne(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl, maxWait, retryInterval time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl, maxWait, retryInterval)
	return args.String(0), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func (m *MockLocker) AcquireAll(ctx context.Context, keys []string, ttl, maxWait, retryInterval time.Duration) (*lock.MultiLock, error) {
	args := m.Called(ctx, keys, ttl, maxWait, retryInterval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lock.MultiLock), args.Error(1)
}

func testConfig() config.ReservationConfig {
	return config.ReservationConfig{
		HoldTimeout:        10 * time.Minute,
		MaxSeatsPerBooking: 3,
		LockTimeout:        30 * time.Second,
		LockMaxWait:        time.Second,
		LockRetryInterval:  10 * time.Millisecond,
		SweeperInterval:    30 * time.Second,
		SweeperBatchSize:   100,
	}
}

func newTestEngine(repo *MockRepository, locker *MockLocker) Engine {
	return NewEngine(repo, locker, testConfig(), logger.GetDefault())
}

func TestReserveRejectsBadCardinality(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	eventID := uuid.New()

	_, err := engine.Reserve(context.Background(), eventID, nil, "u1")
	assert.ErrorIs(t, err, ErrNoSeats)

	tooMany := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	_, err = engine.Reserve(context.Background(), eventID, tooMany, "u1")
	assert.ErrorIs(t, err, ErrTooManySeats)

	dup := uuid.New()
	_, err = engine.Reserve(context.Background(), eventID, []uuid.UUID{dup, dup}, "u1")
	assert.ErrorIs(t, err, ErrDuplicateSeats)

	locker.AssertNotCalled(t, "AcquireAll")
	repo.AssertNotCalled(t, "ReserveSeats")
}

func TestReserveAcquiresSortedLocksThenCommits(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	eventID := uuid.New()
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("00000000-0000-0000-0000-00000000000c")

	expectedKeys := []string{SeatLockKey(a), SeatLockKey(b), SeatLockKey(c)}
	expectedIDs := []uuid.UUID{a, b, c}
	expiry := time.Now().Add(10 * time.Minute)

	locker.On("AcquireAll", mock.Anything, expectedKeys,
		30*time.Second, time.Second, 10*time.Millisecond).
		Return(&lock.MultiLock{}, nil)
	repo.On("ReserveSeats", mock.Anything, eventID, expectedIDs, "u1", 10*time.Minute).
		Return(&ReservationResult{ExpiresAt: expiry}, nil)

	// Deliberately unsorted input.
	result, err := engine.Reserve(context.Background(), eventID, []uuid.UUID{c, a, b}, "u1")
	require.NoError(t, err)
	assert.Equal(t, expiry, result.ExpiresAt)

	locker.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestReserveMapsLockTimeout(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	locker.On("AcquireAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, lock.ErrTimeout)

	_, err := engine.Reserve(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "u1")
	assert.ErrorIs(t, err, ErrLockTimeout)
	repo.AssertNotCalled(t, "ReserveSeats")
}

func TestReservePropagatesSeatUnavailable(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	blocked := uuid.New()
	locker.On("AcquireAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&lock.MultiLock{}, nil)
	repo.On("ReserveSeats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &SeatUnavailableError{SeatID: blocked})

	_, err := engine.Reserve(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "u1")

	var unavailable *SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, blocked, unavailable.SeatID)
	assert.True(t, IsDomainError(err))
}

func TestCancelLocksTheSeat(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	reservationID := uuid.New()
	seatID := uuid.New()

	repo.On("GetByID", mock.Anything, reservationID).
		Return(&Reservation{ID: reservationID, SeatID: seatID, UserID: "u1", Status: StatusActive}, nil)
	locker.On("Acquire", mock.Anything, SeatLockKey(seatID), mock.Anything, mock.Anything, mock.Anything).
		Return("token", nil)
	repo.On("Cancel", mock.Anything, reservationID, "u1").Return(nil)
	locker.On("Release", mock.Anything, SeatLockKey(seatID), "token").Return(nil)

	err := engine.Cancel(context.Background(), reservationID, "u1")
	require.NoError(t, err)

	locker.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestExtendReturnsNewExpiry(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	engine := newTestEngine(repo, locker)

	reservationID := uuid.New()
	seatID := uuid.New()
	newExpiry := time.Now().Add(10 * time.Minute)

	repo.On("GetByID", mock.Anything, reservationID).
		Return(&Reservation{ID: reservationID, SeatID: seatID, UserID: "u1", Status: StatusActive}, nil)
	locker.On("Acquire", mock.Anything, SeatLockKey(seatID), mock.Anything, mock.Anything, mock.Anything).
		Return("token", nil)
	repo.On("Extend", mock.Anything, reservationID, "u1", 10*time.Minute).Return(newExpiry, nil)
	locker.On("Release", mock.Anything, SeatLockKey(seatID), "token").Return(nil)

	got, err := engine.Extend(context.Background(), reservationID, "u1")
	require.NoError(t, err)
	assert.Equal(t, newExpiry, got)
}
