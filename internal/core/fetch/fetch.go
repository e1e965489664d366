// Package fetch wraps a single asynchronous read with loading and error
// state, bounded linear retry, optional auto-refresh, and manual
// refresh/retry controls.
//
// Every load carries a sequence number. A resolution that belongs to a
// superseded load is dropped, so a slow response can never overwrite data
// from a newer one. In-flight reads are not aborted.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/observer"
	"github.com/colonyops/erpsync/internal/core/retry"
	"github.com/colonyops/erpsync/internal/core/timer"
)

// ReadFunc performs one read attempt.
type ReadFunc[T any] func(ctx context.Context) (T, error)

// State is the observable state of a Fetcher.
type State[T any] struct {
	Data       T
	Loading    bool
	Err        error
	RetryCount int
}

// Options configures a Fetcher. A zero Retry policy means retry.DefaultPolicy;
// set Delay with MaxRetries 0 to disable retries.
type Options[T any] struct {
	Retry           retry.Policy
	RefreshInterval time.Duration
	OnSuccess       func(T)
	OnError         func(error)
	Logger          *zerolog.Logger
}

// Fetcher owns the lifecycle of one read.
type Fetcher[T any] struct {
	ctx    context.Context
	opts   Options[T]
	logger zerolog.Logger

	mu      sync.Mutex
	read    ReadFunc[T]
	state   State[T]
	seq     uint64
	version uint64
	closed  bool

	retryTimer   timer.Timer
	refreshTimer timer.Timer
	listeners    observer.Registry[State[T]]
}

// New creates a Fetcher and issues the first read immediately.
func New[T any](ctx context.Context, read ReadFunc[T], opts Options[T]) *Fetcher[T] {
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.DefaultPolicy()
	}

	f := &Fetcher[T]{
		ctx:  ctx,
		opts: opts,
		read: read,
	}
	if opts.Logger != nil {
		f.logger = *opts.Logger
	} else {
		f.logger = logging.Component("fetch")
	}

	f.start()
	if opts.RefreshInterval > 0 {
		f.scheduleRefresh()
	}
	return f
}

// State returns a copy of the current state.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for every state change and immediately delivers the
// current state. It returns the unsubscribe function.
func (f *Fetcher[T]) Subscribe(fn func(State[T])) func() {
	f.mu.Lock()
	h := f.listeners.Add(fn)
	sub := f.listeners.Get(h)
	version, st := f.version, f.state
	f.mu.Unlock()

	if version > 0 {
		sub.Deliver(version, st)
	}
	return func() { f.listeners.Remove(h) }
}

// Refresh restarts the read from RetryCount 0 without waiting for any
// scheduled retry.
func (f *Fetcher[T]) Refresh() { f.start() }

// Retry is Refresh exposed for failed states.
func (f *Fetcher[T]) Retry() { f.start() }

// Reset swaps the read function and issues it, superseding any in-flight load.
func (f *Fetcher[T]) Reset(read ReadFunc[T]) {
	f.mu.Lock()
	f.read = read
	f.mu.Unlock()
	f.start()
}

// Close cancels pending retries and auto-refresh and drops every listener.
// Reads still in flight resolve into nothing.
func (f *Fetcher[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.seq++
	f.mu.Unlock()

	f.retryTimer.Cancel()
	f.refreshTimer.Cancel()
	f.listeners.Clear()
}

func (f *Fetcher[T]) start() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.retryTimer.Cancel()
	f.seq++
	seq := f.seq
	read := f.read
	f.state.Loading = true
	f.state.RetryCount = 0
	version, st := f.bump()
	f.mu.Unlock()

	f.listeners.Notify(version, st)
	go f.attempt(seq, read)
}

// bump must be called with f.mu held.
func (f *Fetcher[T]) bump() (uint64, State[T]) {
	f.version++
	return f.version, f.state
}

func (f *Fetcher[T]) attempt(seq uint64, read ReadFunc[T]) {
	data, err := read(f.ctx)

	f.mu.Lock()
	if seq != f.seq || f.closed {
		f.mu.Unlock()
		f.logger.Debug().Uint64("seq", seq).Msg("discarding stale fetch result")
		return
	}

	if err == nil {
		f.state = State[T]{Data: data}
		version, st := f.bump()
		f.mu.Unlock()

		if f.opts.OnSuccess != nil {
			f.opts.OnSuccess(data)
		}
		f.listeners.Notify(version, st)
		return
	}

	if f.opts.Retry.CanRetry(f.state.RetryCount) {
		wait := f.opts.Retry.Backoff(f.state.RetryCount)
		f.state.RetryCount++
		retryCount := f.state.RetryCount
		version, st := f.bump()
		f.retryTimer.Schedule(wait, func() { f.retryAttempt(seq) })
		f.mu.Unlock()

		f.logger.Debug().Err(err).Int("retry", retryCount).Dur("wait", wait).Msg("fetch failed, retry scheduled")
		f.listeners.Notify(version, st)
		return
	}

	f.state.Err = err
	f.state.Loading = false
	version, st := f.bump()
	f.mu.Unlock()

	f.logger.Warn().Err(err).Int("retries", st.RetryCount).Msg("fetch failed, retries exhausted")
	if f.opts.OnError != nil {
		f.opts.OnError(err)
	}
	f.listeners.Notify(version, st)
}

func (f *Fetcher[T]) retryAttempt(seq uint64) {
	f.mu.Lock()
	if seq != f.seq || f.closed {
		f.mu.Unlock()
		return
	}
	read := f.read
	f.mu.Unlock()

	f.attempt(seq, read)
}

func (f *Fetcher[T]) scheduleRefresh() {
	f.refreshTimer.Schedule(f.opts.RefreshInterval, f.onRefreshTick)
}

func (f *Fetcher[T]) onRefreshTick() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	busy := f.state.Loading
	f.mu.Unlock()

	f.scheduleRefresh()
	if busy {
		return
	}
	f.start()
}
