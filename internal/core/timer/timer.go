// Package timer wraps time.AfterFunc with an explicit lifecycle so that a
// timer firing after it was cancelled or rescheduled is a no-op.
package timer

import (
	"sync"
	"time"
)

// State is the lifecycle of a Timer.
type State int

const (
	Idle State = iota
	Scheduled
	Fired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Timer is a one-shot timer. The zero value is idle and ready to use.
type Timer struct {
	mu    sync.Mutex
	state State
	gen   uint64
	t     *time.Timer
}

// Schedule arms the timer to run fn after d, replacing any pending schedule.
func (t *Timer) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.state = Scheduled
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen || t.state != Scheduled {
			t.mu.Unlock()
			return
		}
		t.state = Fired
		t.mu.Unlock()
		fn()
	})
}

// Cancel disarms a pending schedule. It reports whether one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.gen++
	if t.state != Scheduled {
		return false
	}
	t.state = Cancelled
	return true
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending reports whether the timer is scheduled and has not fired.
func (t *Timer) Pending() bool {
	return t.State() == Scheduled
}
