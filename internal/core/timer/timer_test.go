package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_FiresOnce(t *testing.T) {
	var tm Timer
	var n atomic.Int32

	assert.Equal(t, Idle, tm.State())

	tm.Schedule(5*time.Millisecond, func() { n.Add(1) })
	assert.True(t, tm.Pending())

	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Fired, tm.State())
}

func TestTimer_Cancel_PreventsFire(t *testing.T) {
	var tm Timer
	var n atomic.Int32

	tm.Schedule(10*time.Millisecond, func() { n.Add(1) })
	assert.True(t, tm.Cancel())
	assert.Equal(t, Cancelled, tm.State())

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, n.Load())
	assert.False(t, tm.Cancel(), "second cancel is a no-op")
}

func TestTimer_Schedule_ReplacesPending(t *testing.T) {
	var tm Timer
	var first, second atomic.Int32

	tm.Schedule(10*time.Millisecond, func() { first.Add(1) })
	tm.Schedule(10*time.Millisecond, func() { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "scheduled", Scheduled.String())
	assert.Equal(t, "fired", Fired.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", State(99).String())
}
