package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	ping "github.com/vincentbernat/riemann-puppet-ping"
)

const (
	ms = time.Millisecond

	up          = ping.OutcomeOK
	timedOut    = ping.OutcomeTimedOut
	unreachable = ping.OutcomeUnreachable
)

func BenchmarkAddResult(b *testing.B) {
	h := NewHistory(8)
	for i := 0; i < b.N; i++ {
		h.AddResult(time.Duration(i), up)
	}
}

func BenchmarkCompute(b *testing.B) {
	h := NewHistory(8)
	for i := 0; i < b.N; i++ {
		h.AddResult(time.Duration(i), up)
		h.Compute()
	}
}

func TestComputeEmpty(t *testing.T) {
	h := NewHistory(4)
	assert.Nil(t, h.Compute())
}

func TestComputeFailed(t *testing.T) {
	assert := assert.New(t)

	h := NewHistory(4)
	h.AddResult(2, timedOut)

	metrics := h.Compute()
	assert.EqualValues(1, metrics.PacketsSent)
	assert.EqualValues(1, metrics.PacketsLost)
	assert.EqualValues(0, metrics.Best)
	assert.EqualValues(0, metrics.Worst)
	assert.EqualValues(0, metrics.Median)
	assert.EqualValues(0, metrics.Mean)
	assert.EqualValues(0, metrics.StdDev)
}

func TestComputeMedian(t *testing.T) {
	assert := assert.New(t)

	h := NewHistory(5)
	h.AddResult(300*ms, up)
	h.AddResult(200*ms, up)
	h.AddResult(100*ms, up)
	h.AddResult(0, up)
	assert.EqualValues(150*ms, h.Compute().Median)

	h.AddResult(400*ms, up)
	assert.EqualValues(200*ms, h.Compute().Median)
}

func TestCompute(t *testing.T) {
	assert := assert.New(t)

	{ // populate with 5 entries
		h := NewHistory(8)
		h.AddResult(0, up)
		h.AddResult(100*ms, up)
		h.AddResult(100*ms, up)
		h.AddResult(0, timedOut)
		h.AddResult(100*ms, up)

		assert.Equal(h.count, 5)
		assert.EqualValues(1, h.Compute().PacketsLost)
	}

	{
		// test zero variance
		h := NewHistory(8)
		h.AddResult(100*ms, up)
		h.AddResult(100*ms, up)
		h.AddResult(0, timedOut)

		metrics := h.Compute()
		assert.EqualValues(100*ms, metrics.Best)
		assert.EqualValues(100*ms, metrics.Worst)
		assert.EqualValues(100*ms, metrics.Mean)
		assert.EqualValues(100*ms, metrics.Median)
		assert.EqualValues(0, metrics.StdDev)
		assert.EqualValues(3, metrics.PacketsSent)
		assert.EqualValues(1, metrics.PacketsLost)

		// results getting worse
		h.AddResult(200*ms, up)
		h.AddResult(100*ms, up)
		h.AddResult(0, timedOut)

		metrics = h.Compute()
		assert.EqualValues(100*ms, metrics.Best)
		assert.EqualValues(200*ms, metrics.Worst)
		assert.EqualValues(125*ms, metrics.Mean)
		assert.EqualValues(100*ms, metrics.Median)
		assert.EqualValues(43301270, metrics.StdDev)
		assert.EqualValues(6, metrics.PacketsSent)
		assert.EqualValues(2, metrics.PacketsLost)

		// finally something better
		h.AddResult(0, up)
		metrics = h.Compute()
		assert.EqualValues(0*ms, metrics.Best)
		assert.EqualValues(200*ms, metrics.Worst)
		assert.EqualValues(100*ms, metrics.Mean)
		assert.EqualValues(100*ms, metrics.Median)
		assert.EqualValues(63245553, metrics.StdDev)
		assert.EqualValues(7, metrics.PacketsSent)
		assert.EqualValues(2, metrics.PacketsLost)
	}
}

func TestHistoryCapacity(t *testing.T) {
	assert := assert.New(t)

	h := NewHistory(3)
	assert.Equal(h.count, 0)
	h.AddResult(1, up)
	h.AddResult(2, timedOut)
	assert.Equal(h.count, 2)
	assert.Equal(h.position, 2)
	h.AddResult(1, up)
	assert.Equal(h.count, 3)
	assert.Equal(h.position, 0)

	h.AddResult(0, up)
	assert.Equal(h.count, 3)
	assert.Equal(h.position, 1)
	assert.EqualValues(1, h.Compute().PacketsLost)

	// overwrite lost packet result
	h.AddResult(0, up)
	assert.EqualValues(0, h.Compute().PacketsLost)

	// clear
	h.ComputeAndClear()
	assert.Equal(h.count, 0)
	assert.Equal(h.position, 0)
}

func TestComputeUnreachable(t *testing.T) {
	assert := assert.New(t)

	h := NewHistory(4)
	h.AddResult(0, unreachable)
	h.AddResult(0, timedOut)
	h.AddResult(10*ms, up)
	h.AddResult(0, unreachable)

	metrics := h.Compute()
	assert.EqualValues(4, metrics.PacketsSent)
	assert.EqualValues(3, metrics.PacketsLost)
	assert.EqualValues(2, metrics.Unreachable)
	assert.EqualValues(10*ms, metrics.Median)
	assert.InDelta(0.75, metrics.Loss(), 1e-9)
}

func TestHistoryLast(t *testing.T) {
	assert := assert.New(t)

	h := NewHistory(2)
	_, found := h.Last()
	assert.False(found)

	h.AddResult(5*ms, up)
	last, found := h.Last()
	assert.True(found)
	assert.Equal(Result{Latency: 5 * ms, Outcome: up}, last)

	h.AddResult(0, timedOut)
	h.AddResult(7*ms, up) // wraps around
	last, _ = h.Last()
	assert.Equal(7*ms, last.Latency)
	assert.False(last.Lost())
}
