// Package observer is an in-process observer registry keyed by subscription
// handle. Dispatch works on a copy of the registry taken before any callback
// runs, so callbacks may subscribe or unsubscribe freely.
package observer

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Handle identifies a subscription within one Registry.
type Handle uint64

// Subscriber is a registered callback. Deliveries to one subscriber never
// overlap: a value that arrives while the callback is running is parked and
// applied when it returns, and only the newest parked value survives.
type Subscriber[T any] struct {
	handle  Handle
	fn      func(T)
	removed atomic.Bool

	mu      sync.Mutex
	last    uint64
	running bool
	pending *delivery[T]
}

type delivery[T any] struct {
	version uint64
	v       T
}

// Deliver hands v to the callback when version is newer than anything this
// subscriber has already seen or has parked. If a delivery is already in
// progress, v is parked for it and Deliver returns without waiting. It
// reports whether v was accepted.
func (s *Subscriber[T]) Deliver(version uint64, v T) bool {
	if s.removed.Load() {
		return false
	}

	s.mu.Lock()
	if version <= s.last || (s.pending != nil && version <= s.pending.version) {
		s.mu.Unlock()
		return false
	}
	if s.running {
		s.pending = &delivery[T]{version: version, v: v}
		s.mu.Unlock()
		return true
	}
	s.running = true
	s.last = version
	s.mu.Unlock()

	s.drain(v)
	return true
}

// drain applies v and then every value parked meanwhile. The lock is never
// held across fn, so a callback may deliver to itself.
func (s *Subscriber[T]) drain(v T) {
	done := false
	defer func() {
		if !done {
			s.mu.Lock()
			s.running = false
			s.pending = nil
			s.mu.Unlock()
		}
	}()

	for {
		s.fn(v)

		s.mu.Lock()
		next := s.pending
		s.pending = nil
		if next == nil || s.removed.Load() {
			s.running = false
			s.mu.Unlock()
			done = true
			return
		}
		s.last = next.version
		v = next.v
		s.mu.Unlock()
	}
}

// Registry holds subscribers in registration order.
type Registry[T any] struct {
	mu   sync.Mutex
	next Handle
	subs []*Subscriber[T]
}

// Add registers fn and returns its handle.
func (r *Registry[T]) Add(fn func(T)) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.subs = append(r.subs, &Subscriber[T]{handle: r.next, fn: fn})
	return r.next
}

// Get returns the subscriber for h, or nil.
func (r *Registry[T]) Get(h Handle) *Subscriber[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.handle == h {
			return s
		}
	}
	return nil
}

// Remove unregisters h. Pending deliveries to it become no-ops. It reports
// whether h was registered.
func (r *Registry[T]) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.subs, func(s *Subscriber[T]) bool { return s.handle == h })
	if i < 0 {
		return false
	}
	r.subs[i].removed.Store(true)
	r.subs = slices.Delete(r.subs, i, i+1)
	return true
}

// Len returns the number of registered subscribers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Snapshot copies the current subscriber list.
func (r *Registry[T]) Snapshot() []*Subscriber[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.subs)
}

// Clear removes every subscriber.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		s.removed.Store(true)
	}
	r.subs = nil
}

// Dispatch delivers v at version to every subscriber in subs.
func Dispatch[T any](subs []*Subscriber[T], version uint64, v T) {
	for _, s := range subs {
		s.Deliver(version, v)
	}
}

// Notify snapshots the registry and dispatches v at version.
func (r *Registry[T]) Notify(version uint64, v T) {
	Dispatch(r.Snapshot(), version, v)
}
