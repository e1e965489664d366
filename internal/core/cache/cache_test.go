package cache

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/colonyops/erpsync/internal/core/transport/transporttest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = time.Second
	tick    = time.Millisecond

	vendors = "/api/procurement/vendors"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func newCache(t *testing.T, fake *transporttest.Fake, cfg Config) *Cache {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	c := New(fake, cfg)
	t.Cleanup(c.Close)
	return c
}

func names(s Snapshot) []string {
	out := make([]string, 0, s.Len())
	for _, r := range s.Records() {
		out = append(out, r.String("name"))
	}
	return out
}

func TestCache_CreateReachesEverySubscriberInOrder(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []map[string]any{{"id": 1, "name": "Acme"}})
	fake.Echo(http.MethodPost, vendors, map[string]any{"id": 2})

	c := newCache(t, fake, Config{})

	a, b := &recorder{}, &recorder{}
	unsubA := c.Subscribe(vendors, a.record)
	defer unsubA()
	unsubB := c.Subscribe(vendors, b.record)
	defer unsubB()

	require.Eventually(t, func() bool { return a.len() == 1 && b.len() == 1 }, waitFor, tick)

	rec, err := c.Create(context.Background(), vendors, map[string]any{"name": "Beta"})
	require.NoError(t, err)
	assert.Equal(t, "2", rec.ID("id"))

	for _, r := range []*recorder{a, b} {
		snaps := r.all()
		require.Len(t, snaps, 2)
		assert.Equal(t, []string{"Acme"}, names(snaps[0]))
		assert.Equal(t, []string{"Acme", "Beta"}, names(snaps[1]))
		assert.Less(t, snaps[0].Version, snaps[1].Version)
	}

	assert.Equal(t, 1, fake.Count(http.MethodGet, vendors), "second subscriber shares the first fetch")
}

func TestCache_LastUnsubscribeStopsPolling(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []any{})

	c := newCache(t, fake, Config{PollInterval: 5 * time.Millisecond})

	r := &recorder{}
	unsub1 := c.Subscribe(vendors, r.record)
	unsub2 := c.Subscribe(vendors, r.record)

	assert.True(t, c.Polling(vendors))
	assert.Equal(t, 2, c.SubscriberCount(vendors))
	require.Eventually(t, func() bool { return fake.Count(http.MethodGet, vendors) >= 3 }, waitFor, tick)

	unsub1()
	assert.True(t, c.Polling(vendors), "remaining subscriber keeps the poller alive")

	unsub2()
	unsub2()
	assert.False(t, c.Polling(vendors))
	assert.Zero(t, c.SubscriberCount(vendors))
	assert.Empty(t, c.Keys())

	// allow an in-flight tick to land before sampling
	time.Sleep(10 * time.Millisecond)
	calls := fake.Count(http.MethodGet, vendors)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, fake.Count(http.MethodGet, vendors))
}

func TestCache_PollFailureIsNotPropagated(t *testing.T) {
	fake := transporttest.New()
	fake.Fail(http.MethodGet, vendors, http.StatusInternalServerError, "database unavailable")

	c := newCache(t, fake, Config{PollInterval: 5 * time.Millisecond})

	r := &recorder{}
	unsub := c.Subscribe(vendors, r.record)
	defer unsub()

	require.Eventually(t, func() bool { return fake.Count(http.MethodGet, vendors) >= 3 }, waitFor, tick)
	assert.Zero(t, r.len())
	assert.True(t, c.Polling(vendors))

	_, ok := c.Snapshot(vendors)
	assert.False(t, ok)
}

func TestCache_FailedMutationLeavesSnapshotUntouched(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []map[string]any{{"id": 1, "name": "Acme"}})
	fake.Fail(http.MethodPost, vendors, http.StatusUnprocessableEntity, "name is required")
	fake.Fail(http.MethodPut, vendors+"/1", http.StatusConflict, "stale record")
	fake.Fail(http.MethodDelete, vendors+"/1", http.StatusForbidden, "not allowed")

	c := newCache(t, fake, Config{})

	r := &recorder{}
	unsub := c.Subscribe(vendors, r.record)
	defer unsub()
	require.Eventually(t, func() bool { return r.len() == 1 }, waitFor, tick)

	ctx := context.Background()
	_, err := c.Create(ctx, vendors, map[string]any{})
	require.Error(t, err)
	_, err = c.Update(ctx, vendors, "1", map[string]any{"name": "Acme Ltd"})
	require.Error(t, err)
	_, err = c.Remove(ctx, vendors, "1")
	require.Error(t, err)

	snap, ok := c.Snapshot(vendors)
	require.True(t, ok)
	assert.Equal(t, []string{"Acme"}, names(snap))
	assert.Equal(t, 1, r.len())
}

func TestCache_UpdateAndRemoveRewriteByIdentity(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []map[string]any{
		{"id": 1, "name": "Acme"},
		{"id": 2, "name": "Beta"},
	})
	fake.Echo(http.MethodPut, vendors+"/2", map[string]any{"id": 2})
	fake.Respond(http.MethodDelete, vendors+"/1", nil)

	c := newCache(t, fake, Config{})

	r := &recorder{}
	unsub := c.Subscribe(vendors, r.record)
	defer unsub()
	require.Eventually(t, func() bool { return r.len() == 1 }, waitFor, tick)

	ctx := context.Background()
	_, err := c.Update(ctx, vendors, "2", map[string]any{"name": "Beta Corp"})
	require.NoError(t, err)

	snap, _ := c.Snapshot(vendors)
	assert.Equal(t, []string{"Acme", "Beta Corp"}, names(snap))

	_, err = c.Remove(ctx, vendors, "1")
	require.NoError(t, err)

	snap, _ = c.Snapshot(vendors)
	assert.Equal(t, []string{"Beta Corp"}, names(snap))
	assert.Equal(t, 3, r.len())
}

func TestCache_MutationWithoutSubscribersReturnsRecord(t *testing.T) {
	fake := transporttest.New()
	fake.Echo(http.MethodPost, vendors, map[string]any{"id": 9})

	c := newCache(t, fake, Config{})

	rec, err := c.Create(context.Background(), vendors, map[string]any{"name": "Gamma"})
	require.NoError(t, err)
	assert.Equal(t, "9", rec.ID("id"))
	assert.Equal(t, "Gamma", rec.String("name"))
	assert.Empty(t, c.Keys())
}

func TestCache_FetchNotifiesBeforeReturning(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []map[string]any{{"id": 1, "name": "Acme"}})

	c := newCache(t, fake, Config{})

	r := &recorder{}
	unsub := c.Subscribe(vendors, r.record, WithoutInitialFetch())
	defer unsub()

	assert.Zero(t, fake.Count(http.MethodGet, vendors))
	assert.True(t, c.Polling(vendors))

	snap, err := c.Fetch(context.Background(), vendors)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, names(snap))
	assert.Equal(t, 1, r.len())
}

func TestCache_FetchShapeMismatch(t *testing.T) {
	const settings = "/api/settings/company"

	fake := transporttest.New()
	fake.Respond(http.MethodGet, settings, []any{})
	fake.Respond(http.MethodGet, vendors, map[string]any{"id": 1})

	c := newCache(t, fake, Config{
		Rules: []Rule{{Pattern: "/api/settings/*", Kind: KindSingle}},
	})

	_, err := c.Fetch(context.Background(), settings)
	require.ErrorIs(t, err, ErrShape)

	_, err = c.Fetch(context.Background(), vendors)
	require.ErrorIs(t, err, ErrShape)
}

func TestCache_SingleEndpoint(t *testing.T) {
	const settings = "/api/settings/company"

	fake := transporttest.New()
	fake.Respond(http.MethodGet, settings, map[string]any{"name": "Hive Ltd", "currency": "USD"})
	fake.Echo(http.MethodPut, settings, map[string]any{"name": "Hive Ltd"})

	c := newCache(t, fake, Config{})
	c.Declare(settings, KindSingle)
	assert.Equal(t, KindSingle, c.KindOf(settings))

	r := &recorder{}
	unsub := c.Subscribe(settings, r.record)
	defer unsub()
	require.Eventually(t, func() bool { return r.len() == 1 }, waitFor, tick)

	_, err := c.Update(context.Background(), settings, "", map[string]any{"currency": "EUR"})
	require.NoError(t, err)

	snap, ok := c.Snapshot(settings)
	require.True(t, ok)
	assert.Equal(t, KindSingle, snap.Kind)
	assert.Equal(t, "EUR", snap.Item.String("currency"))
}

func TestCache_UnsubscribeInsideCallback(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []any{})

	c := newCache(t, fake, Config{})

	var unsub func()
	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})

	mu.Lock()
	unsub = c.Subscribe(vendors, func(Snapshot) {
		mu.Lock()
		calls++
		fn := unsub
		mu.Unlock()
		fn()
		close(done)
	})
	mu.Unlock()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("callback never ran")
	}

	assert.Equal(t, 1, calls)
	assert.Empty(t, c.Keys())
}

func TestCache_Rules(t *testing.T) {
	c := New(transporttest.New(), Config{
		Rules: []Rule{
			{Pattern: "/api/settings/**", Kind: KindSingle, PollInterval: time.Minute},
			{Pattern: "/api/finance/*", PollInterval: 30 * time.Second},
		},
	})
	defer c.Close()

	assert.Equal(t, KindSingle, c.KindOf("/api/settings/tax/defaults"))
	assert.Equal(t, KindList, c.KindOf("/api/finance/journals?page=2"))
	assert.Equal(t, time.Minute, c.intervalFor("/api/settings/company"))
	assert.Equal(t, 30*time.Second, c.intervalFor("/api/finance/journals?page=2"))
	assert.Equal(t, DefaultPollInterval, c.intervalFor(vendors))
}

func TestItemPath(t *testing.T) {
	tests := []struct {
		key, id, want string
	}{
		{key: vendors, id: "7", want: vendors + "/7"},
		{key: vendors + "?page=2&search=ac", id: "7", want: vendors + "/7"},
		{key: vendors + "/", id: "a b", want: vendors + "/a%20b"},
		{key: "/api/settings/company", id: "", want: "/api/settings/company"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ItemPath(tt.key, tt.id))
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	fake := transporttest.New()
	fake.Respond(http.MethodGet, vendors, []any{})

	c := New(fake, Config{PollInterval: time.Millisecond})
	c.Subscribe(vendors, func(Snapshot) {})
	c.Close()
	c.Close()

	assert.Empty(t, c.Keys())
	assert.NotPanics(t, func() { c.Subscribe(vendors, func(Snapshot) {})() })
}

func TestCache_SlowSubscriberEndsOnNewestSnapshot(t *testing.T) {
	var current atomic.Value
	current.Store("old")

	fake := transporttest.New()
	fake.Handle(http.MethodGet, vendors, func(context.Context, transporttest.Call) (any, error) {
		return []map[string]any{{"id": 1, "name": current.Load()}}, nil
	})

	c := newCache(t, fake, Config{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var running, peak atomic.Int32
	var last atomic.Value

	unsub := c.Subscribe(vendors, func(s Snapshot) {
		n := running.Add(1)
		defer running.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		name := names(s)[0]
		if name == "old" {
			close(entered)
			<-release
		}
		last.Store(name)
	}, WithoutInitialFetch())
	defer unsub()

	first := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), vendors)
		first <- err
	}()
	<-entered

	current.Store("new")
	snap, err := c.Fetch(context.Background(), vendors)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, names(snap))

	close(release)
	require.NoError(t, <-first)

	cached, ok := c.Snapshot(vendors)
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, names(cached))
	assert.Equal(t, "new", last.Load())
	assert.Equal(t, int32(1), peak.Load())
}
