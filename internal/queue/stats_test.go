package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughputStartsAtZero(t *testing.T) {
	gauge := NewThroughput()
	assert.Zero(t, gauge.Rate())
	assert.Zero(t, gauge.EstimateWait(100))
}

func TestThroughputTracksCompletions(t *testing.T) {
	gauge := NewThroughput()

	gauge.Observe() // first observation only anchors the clock
	time.Sleep(10 * time.Millisecond)
	gauge.Observe()
	time.Sleep(10 * time.Millisecond)
	gauge.Observe()

	rate := gauge.Rate()
	assert.Greater(t, rate, 0.0)

	wait := gauge.EstimateWait(10)
	assert.InDelta(t, 10.0/rate, wait, 0.001)
}

func TestEstimateWaitEmptyBacklog(t *testing.T) {
	gauge := NewThroughput()
	gauge.Observe()
	time.Sleep(5 * time.Millisecond)
	gauge.Observe()

	assert.Zero(t, gauge.EstimateWait(0))
}
