package reservations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YeonwooSung/ticketing-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func TestSweepIsolatesFailures(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	sweeper := NewSweeper(repo, locker, nil, testConfig(), logger.GetDefault())

	first := Reservation{ID: uuid.New(), SeatID: uuid.New(), EventID: uuid.New(), UserID: "u1",
		Status: StatusActive, ExpiresAt: time.Now().Add(-time.Minute)}
	second := Reservation{ID: uuid.New(), SeatID: uuid.New(), EventID: uuid.New(), UserID: "u2",
		Status: StatusActive, ExpiresAt: time.Now().Add(-time.Minute)}

	repo.On("ExpiredBatch", mock.Anything, 100).Return([]Reservation{first, second}, nil)

	locker.On("Acquire", mock.Anything, SeatLockKey(first.SeatID), mock.Anything, mock.Anything, mock.Anything).
		Return("t1", nil)
	locker.On("Acquire", mock.Anything, SeatLockKey(second.SeatID), mock.Anything, mock.Anything, mock.Anything).
		Return("t2", nil)
	locker.On("Release", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// First reservation fails; the second must still be swept.
	repo.On("ExpireOne", mock.Anything, first.ID).Return(errors.New("deadlock detected"))
	repo.On("ExpireOne", mock.Anything, second.ID).Return(nil)

	sweeper.Sweep(context.Background())

	repo.AssertCalled(t, "ExpireOne", mock.Anything, first.ID)
	repo.AssertCalled(t, "ExpireOne", mock.Anything, second.ID)
}

func TestSweepSkipsWhenLockBusy(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	sweeper := NewSweeper(repo, locker, nil, testConfig(), logger.GetDefault())

	busy := Reservation{ID: uuid.New(), SeatID: uuid.New(), EventID: uuid.New(), UserID: "u1",
		Status: StatusActive, ExpiresAt: time.Now().Add(-time.Minute)}

	repo.On("ExpiredBatch", mock.Anything, 100).Return([]Reservation{busy}, nil)
	locker.On("Acquire", mock.Anything, SeatLockKey(busy.SeatID), mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("lock: acquisition timed out"))

	sweeper.Sweep(context.Background())

	// A reservation whose seat lock is contended is left for the next cycle.
	repo.AssertNotCalled(t, "ExpireOne", mock.Anything, busy.ID)
}

func TestSweepNoWorkIsQuiet(t *testing.T) {
	repo := new(MockRepository)
	locker := new(MockLocker)
	sweeper := NewSweeper(repo, locker, nil, testConfig(), logger.GetDefault())

	repo.On("ExpiredBatch", mock.Anything, 100).Return([]Reservation{}, nil)

	sweeper.Sweep(context.Background())

	locker.AssertNotCalled(t, "Acquire")
}
