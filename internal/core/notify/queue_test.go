package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = time.Second
	tick    = time.Millisecond
)

type listener struct {
	mu    sync.Mutex
	calls [][]Record
}

func (l *listener) record(recs []Record) {
	l.mu.Lock()
	l.calls = append(l.calls, recs)
	l.mu.Unlock()
}

func (l *listener) last() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return nil
	}
	return l.calls[len(l.calls)-1]
}

func (l *listener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func messages(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Message
	}
	return out
}

// quiet returns a queue whose records do not auto-hide during a test.
func quiet() *Queue {
	return New(Config{HideAfter: time.Hour, Grace: 5 * time.Millisecond})
}

func TestQueue_AddAssignsIdentity(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	id := q.Add(Record{Title: "Lead scored", Type: "lead_scored"})
	require.NotEmpty(t, id)

	recs := q.List()
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.True(t, recs[0].Visible)
	assert.False(t, recs[0].Undoable)
	assert.Equal(t, SeverityInfo, recs[0].Severity)
	assert.False(t, recs[0].Timestamp.IsZero())

	other := q.Add(Record{Title: "Email synced"})
	assert.NotEqual(t, id, other)
}

func TestQueue_CapacityDropsOldest(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	l := &listener{}
	unsub := q.Subscribe(l.record)
	defer unsub()

	for i := 1; i <= 7; i++ {
		q.Infof("event %d", i)
		assert.LessOrEqual(t, len(l.last()), DefaultCapacity)
	}

	assert.Equal(t,
		[]string{"event 7", "event 6", "event 5", "event 4", "event 3"},
		messages(l.last()),
	)
	assert.Equal(t, 7, l.count())
}

func TestQueue_HideThenRemove(t *testing.T) {
	q := quiet()

	l := &listener{}
	unsub := q.Subscribe(l.record)
	defer unsub()

	id := q.Successf("saved")
	q.Hide(id)

	recs := q.List()
	require.Len(t, recs, 1, "hidden records stay until the grace delay passes")
	assert.False(t, recs[0].Visible)

	require.Eventually(t, func() bool { return q.Len() == 0 }, waitFor, tick)
	assert.Empty(t, l.last())
	assert.Equal(t, 3, l.count(), "add, hide, remove")

	q.Hide(id)
	assert.Equal(t, 3, l.count(), "hiding a removed id is a no-op")
}

func TestQueue_AutoHide(t *testing.T) {
	q := New(Config{HideAfter: 5 * time.Millisecond, Grace: 5 * time.Millisecond})

	q.Add(Record{Message: "fleeting"})
	q.Add(Record{Message: "pinned", Sticky: true})

	require.Eventually(t, func() bool { return q.Len() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"pinned"}, messages(q.List()))
	q.ClearAll()
}

func TestQueue_Undo(t *testing.T) {
	q := quiet()

	var own, explicit atomic.Int32
	id := q.Add(Record{Title: "Vendor deleted", Undoable: true, Undo: func() { own.Add(1) }})

	q.Undo(id, func() { explicit.Add(1) })
	assert.Equal(t, int32(1), explicit.Load())
	assert.Zero(t, own.Load())

	recs := q.List()
	require.Len(t, recs, 2)
	assert.Equal(t, UndoneTitle, recs[0].Title)
	assert.Equal(t, SeverityInfo, recs[0].Severity)
	assert.False(t, recs[1].Visible, "original is hidden")

	q.Undo(id, func() { explicit.Add(1) })
	assert.Equal(t, int32(1), explicit.Load(), "second undo is ignored")

	require.Eventually(t, func() bool { return q.Len() == 1 }, waitFor, tick)
	q.ClearAll()
}

func TestQueue_UndoFallsBackToRecordCallback(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	var own atomic.Int32
	id := q.Add(Record{Undoable: true, Undo: func() { own.Add(1) }})
	q.Undo(id, nil)
	assert.Equal(t, int32(1), own.Load())

	plain := q.Add(Record{Message: "no undo"})
	before := q.Len()
	q.Undo(plain, nil)
	assert.Equal(t, before, q.Len(), "nothing to undo")
}

func TestQueue_UndoMissingRecord(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	l := &listener{}
	unsub := q.Subscribe(l.record)
	defer unsub()

	called := false
	assert.NotPanics(t, func() {
		q.Undo("0190b0c4-0000-7000-8000-000000000000", func() { called = true })
	})
	assert.False(t, called)
	assert.Zero(t, l.count())
}

func TestQueue_ClearAllDefusesTimers(t *testing.T) {
	q := New(Config{HideAfter: 5 * time.Millisecond, Grace: 5 * time.Millisecond})

	l := &listener{}
	unsub := q.Subscribe(l.record)
	defer unsub()

	for i := range 3 {
		q.Add(Record{Message: fmt.Sprint(i)})
	}
	q.ClearAll()
	assert.Empty(t, l.last())
	calls := l.count()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, l.count(), "no hide after clear")
}

func TestQueue_Listeners(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	a, b := &listener{}, &listener{}
	unsubA := q.Subscribe(a.record)
	unsubB := q.Subscribe(b.record)
	defer unsubB()

	q.Warnf("disk almost full")
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())

	unsubA()
	unsubA()
	q.Errorf("sync failed: %s", "timeout")
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 2, b.count())
	assert.Equal(t, SeverityError, b.last()[0].Severity)

	late := &listener{}
	unsubLate := q.Subscribe(late.record)
	defer unsubLate()
	require.Equal(t, 1, late.count(), "late listeners get the current queue")
	assert.Len(t, late.last(), 2)
}

func TestQueue_ListenerMayReenter(t *testing.T) {
	q := quiet()
	defer q.ClearAll()

	var once sync.Once
	q.Subscribe(func(recs []Record) {
		if len(recs) > 0 && recs[0].Severity == SeverityError {
			once.Do(func() { q.Infof("retry scheduled") })
		}
	})

	q.Errorf("boom")
	assert.Equal(t, []string{"retry scheduled", "boom"}, messages(q.List()))
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityError, ParseSeverity("error"))
	assert.Equal(t, SeverityInfo, ParseSeverity("loud"))
}
