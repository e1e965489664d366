package notify

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/observer"
	"github.com/colonyops/erpsync/internal/core/timer"
)

const (
	DefaultCapacity  = 5
	DefaultHideAfter = 5 * time.Second
	DefaultGrace     = 300 * time.Millisecond
)

// Config tunes a Queue. Zero values take the defaults.
type Config struct {
	Capacity  int
	HideAfter time.Duration
	Grace     time.Duration
}

// Listener receives the full queue, most recent first, after every change.
type Listener func([]Record)

type item struct {
	rec    Record
	undone bool
	hide   timer.Timer
	remove timer.Timer
}

func (it *item) stop() {
	it.hide.Cancel()
	it.remove.Cancel()
}

// Queue is the notification queue. Construct one per application with New.
type Queue struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	items     []*item
	version   uint64
	listeners observer.Registry[[]Record]
}

func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.HideAfter <= 0 {
		cfg.HideAfter = DefaultHideAfter
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	return &Queue{
		cfg:    cfg,
		logger: logging.Component("notify"),
	}
}

// Add inserts rec at the head of the queue and returns its id. Records beyond
// capacity are dropped from the tail.
func (q *Queue) Add(rec Record) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	rec.ID = id.String()
	rec.Timestamp = time.Now()
	rec.Visible = true
	if rec.Severity == "" {
		rec.Severity = SeverityInfo
	}

	it := &item{rec: rec}

	q.mu.Lock()
	q.items = slices.Insert(q.items, 0, it)
	if len(q.items) > q.cfg.Capacity {
		for _, dropped := range q.items[q.cfg.Capacity:] {
			dropped.stop()
		}
		q.items = slices.Clone(q.items[:q.cfg.Capacity])
	}
	if !rec.Sticky {
		it.hide.Schedule(q.cfg.HideAfter, func() { q.Hide(rec.ID) })
	}
	q.commitLocked()

	q.logger.Debug().
		Str("id", rec.ID).
		Str("severity", string(rec.Severity)).
		Str("type", rec.Type).
		Msg("notification added")
	return rec.ID
}

// Hide marks the record invisible, notifies listeners, and removes it after
// the grace delay. Unknown or already hidden ids are ignored.
func (q *Queue) Hide(id string) {
	q.mu.Lock()
	it := q.findLocked(id)
	if it == nil || !it.rec.Visible {
		q.mu.Unlock()
		return
	}
	it.hide.Cancel()
	it.rec.Visible = false
	it.remove.Schedule(q.cfg.Grace, func() { q.remove(id) })
	q.commitLocked()
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	i := slices.IndexFunc(q.items, func(it *item) bool { return it.rec.ID == id })
	if i < 0 {
		q.mu.Unlock()
		return
	}
	q.items = slices.Delete(q.items, i, i+1)
	q.commitLocked()
}

// Undo runs cb, or the record's own Undo when cb is nil, pushes an
// "Action Undone" confirmation, and hides the original. It does nothing when
// the record is gone, has no undo action, or was already undone.
func (q *Queue) Undo(id string, cb func()) {
	q.mu.Lock()
	it := q.findLocked(id)
	if it == nil || it.undone {
		q.mu.Unlock()
		return
	}
	fn := cb
	if fn == nil {
		fn = it.rec.Undo
	}
	if fn == nil {
		q.mu.Unlock()
		return
	}
	it.undone = true
	title := it.rec.Title
	q.mu.Unlock()

	fn()

	msg := "The last action was reverted."
	if title != "" {
		msg = fmt.Sprintf("%q was reverted.", title)
	}
	q.Add(Record{Type: "undo", Severity: SeverityInfo, Title: UndoneTitle, Message: msg})
	q.Hide(id)
}

// ClearAll empties the queue. Pending hide and removal timers become no-ops.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	for _, it := range q.items {
		it.stop()
	}
	q.items = nil
	q.commitLocked()
}

// List returns the current queue, most recent first.
func (q *Queue) List() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.recordsLocked()
}

// Len returns the number of records, visible or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe registers fn for every change and returns the unsubscribe
// function. When the queue has changed at least once, fn immediately
// receives the current contents.
func (q *Queue) Subscribe(fn Listener) func() {
	q.mu.Lock()
	h := q.listeners.Add(fn)
	sub := q.listeners.Get(h)
	version, recs := q.version, q.recordsLocked()
	q.mu.Unlock()

	if version > 0 {
		sub.Deliver(version, recs)
	}

	var once sync.Once
	return func() {
		once.Do(func() { q.listeners.Remove(h) })
	}
}

// Infof adds an info record.
func (q *Queue) Infof(format string, args ...any) string {
	return q.publish(SeverityInfo, format, args...)
}

// Successf adds a success record.
func (q *Queue) Successf(format string, args ...any) string {
	return q.publish(SeveritySuccess, format, args...)
}

// Warnf adds a warning record.
func (q *Queue) Warnf(format string, args ...any) string {
	return q.publish(SeverityWarning, format, args...)
}

// Errorf adds an error record.
func (q *Queue) Errorf(format string, args ...any) string {
	return q.publish(SeverityError, format, args...)
}

func (q *Queue) publish(sev Severity, format string, args ...any) string {
	return q.Add(Record{Severity: sev, Message: fmt.Sprintf(format, args...)})
}

func (q *Queue) findLocked(id string) *item {
	for _, it := range q.items {
		if it.rec.ID == id {
			return it
		}
	}
	return nil
}

func (q *Queue) recordsLocked() []Record {
	out := make([]Record, len(q.items))
	for i, it := range q.items {
		out[i] = it.rec
	}
	return out
}

// commitLocked bumps the version, releases q.mu, and notifies listeners.
func (q *Queue) commitLocked() {
	q.version++
	version, recs := q.version, q.recordsLocked()
	subs := q.listeners.Snapshot()
	q.mu.Unlock()

	observer.Dispatch(subs, version, recs)
}
