package query

import (
	"context"
	"sync"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/fetch"
	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/observer"
	"github.com/colonyops/erpsync/internal/core/retry"
)

// LiveState is what a Live view renders.
type LiveState struct {
	Data    cache.Snapshot
	Loading bool
	Err     error
}

// LiveOptions tunes a Live view. A zero Retry uses retry.DefaultPolicy.
type LiveOptions struct {
	Retry retry.Policy
}

// Live is a real-time view of one cache key. The first load goes through a
// fetch.Fetcher so it is retried; later updates arrive from the cache poller
// and from mutations made anywhere in the process.
type Live struct {
	c   *cache.Cache
	key string

	fetcher    *fetch.Fetcher[cache.Snapshot]
	unsubCache func()
	unsubFetch func()

	mu        sync.Mutex
	state     LiveState
	version   uint64
	closed    bool
	listeners observer.Registry[LiveState]
}

// NewLive subscribes to key and starts the initial load.
func NewLive(ctx context.Context, c *cache.Cache, key string, opts LiveOptions) *Live {
	l := &Live{
		c:     c,
		key:   key,
		state: LiveState{Loading: true},
	}

	logger := logging.ForEndpoint("live", key)
	l.unsubCache = c.Subscribe(key, l.onSnapshot, cache.WithoutInitialFetch())
	l.fetcher = fetch.New(ctx, func(ctx context.Context) (cache.Snapshot, error) {
		return c.Fetch(ctx, key)
	}, fetch.Options[cache.Snapshot]{
		Retry:  opts.Retry,
		Logger: &logger,
	})
	l.unsubFetch = l.fetcher.Subscribe(l.onFetch)
	return l
}

// Key returns the endpoint key this view follows.
func (l *Live) Key() string { return l.key }

func (l *Live) onSnapshot(s cache.Snapshot) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.state.Data = s
	l.state.Err = nil
	l.commitLocked()
}

func (l *Live) onFetch(st fetch.State[cache.Snapshot]) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.state.Loading = st.Loading
	l.state.Err = st.Err
	l.commitLocked()
}

func (l *Live) commitLocked() {
	l.version++
	version, st := l.version, l.state
	subs := l.listeners.Snapshot()
	l.mu.Unlock()

	observer.Dispatch(subs, version, st)
}

// State returns the current view state.
func (l *Live) State() LiveState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe registers fn for every state change, delivering the current
// state immediately.
func (l *Live) Subscribe(fn func(LiveState)) func() {
	l.mu.Lock()
	h := l.listeners.Add(fn)
	sub := l.listeners.Get(h)
	version, st := l.version, l.state
	l.mu.Unlock()

	if version > 0 {
		sub.Deliver(version, st)
	}
	return func() { l.listeners.Remove(h) }
}

// Create posts payload to the view's key.
func (l *Live) Create(ctx context.Context, payload any) (cache.Record, error) {
	return l.c.Create(ctx, l.key, payload)
}

// Update replaces the record with id.
func (l *Live) Update(ctx context.Context, id string, payload any) (cache.Record, error) {
	return l.c.Update(ctx, l.key, id, payload)
}

// Remove deletes the record with id.
func (l *Live) Remove(ctx context.Context, id string) (cache.Record, error) {
	return l.c.Remove(ctx, l.key, id)
}

// Refresh reloads from the server with a fresh retry budget.
func (l *Live) Refresh() { l.fetcher.Refresh() }

// SetData replaces the local view until the next cache delivery.
func (l *Live) SetData(s cache.Snapshot) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.state.Data = s
	l.commitLocked()
}

// Close unsubscribes from the cache and stops the fetcher.
func (l *Live) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.unsubFetch()
	l.fetcher.Close()
	l.unsubCache()
	l.listeners.Clear()
}
