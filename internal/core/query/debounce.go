package query

import (
	"time"

	"github.com/colonyops/erpsync/internal/core/timer"
)

// DefaultDebounce is the quiet period before a typed search term is sent.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer runs the most recently triggered function once input has been
// quiet for the configured wait.
type Debouncer struct {
	wait time.Duration
	t    timer.Timer
}

func NewDebouncer(wait time.Duration) *Debouncer {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &Debouncer{wait: wait}
}

// Trigger restarts the quiet period with fn as the pending call.
func (d *Debouncer) Trigger(fn func()) { d.t.Schedule(d.wait, fn) }

// Now drops any pending call and runs fn on the timer goroutine right away.
func (d *Debouncer) Now(fn func()) { d.t.Schedule(0, fn) }

// Stop drops the pending call. It reports whether one was pending.
func (d *Debouncer) Stop() bool { return d.t.Cancel() }

// Pending reports whether a call is waiting.
func (d *Debouncer) Pending() bool { return d.t.Pending() }
