package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/query"
)

// drainMsg tells the model that the buffer holds updates.
type drainMsg struct{}

// pending is what a drain hands back. Nil fields did not change.
type pending struct {
	state  *query.FilteredState
	toasts []notify.Record
	queued bool
}

// UpdateBuffer collects view states and notification lists produced on
// cache and timer goroutines, keeping only the latest of each, and emits
// coalesced drain signals for the Bubble Tea loop.
type UpdateBuffer struct {
	mu     sync.Mutex
	state  *query.FilteredState
	toasts []notify.Record
	queued bool

	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewUpdateBuffer() *UpdateBuffer {
	return &UpdateBuffer{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// PushState replaces the buffered view state.
func (b *UpdateBuffer) PushState(st query.FilteredState) {
	b.mu.Lock()
	b.state = &st
	b.mu.Unlock()
	b.notify()
}

// PushToasts replaces the buffered notification list.
func (b *UpdateBuffer) PushToasts(recs []notify.Record) {
	b.mu.Lock()
	b.toasts = recs
	b.queued = true
	b.mu.Unlock()
	b.notify()
}

func (b *UpdateBuffer) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Drain returns everything buffered since the last drain.
func (b *UpdateBuffer) Drain() pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := pending{state: b.state, toasts: b.toasts, queued: b.queued}
	b.state = nil
	b.toasts = nil
	b.queued = false
	return p
}

// Wait blocks until there is something to drain. It returns nil once the
// buffer is closed so the program can exit without a stuck command.
func (b *UpdateBuffer) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.signal:
			return drainMsg{}
		case <-b.done:
			return nil
		}
	}
}

// Close releases any pending Wait.
func (b *UpdateBuffer) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
