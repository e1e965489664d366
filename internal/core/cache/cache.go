// Package cache is a registry of per-endpoint server state. It owns one entry
// and one poller per endpoint key, multiplexes any number of subscribers onto
// that poller, and rewrites the cached snapshot after successful mutations.
package cache

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/observer"
	"github.com/colonyops/erpsync/internal/core/timer"
	"github.com/colonyops/erpsync/internal/core/transport"
)

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultIdentityField = "id"
)

// Rule declares the kind and poll cadence of every endpoint whose path
// matches Pattern (doublestar syntax).
type Rule struct {
	Pattern      string
	Kind         Kind
	PollInterval time.Duration
}

// Config configures a Cache.
type Config struct {
	PollInterval  time.Duration
	IdentityField string
	Rules         []Rule
	Observer      Observer
}

// Subscriber receives every new snapshot of an endpoint.
type Subscriber func(Snapshot)

// SubscribeOption tunes a single Subscribe call.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	skipInitialFetch bool
}

// WithoutInitialFetch starts the poller without the immediate first fetch.
// Callers use it when they perform the first load themselves.
func WithoutInitialFetch() SubscribeOption {
	return func(o *subscribeOptions) { o.skipInitialFetch = true }
}

type poller struct {
	state  timer.State
	cancel context.CancelFunc
}

func (p *poller) stop() {
	p.state = timer.Cancelled
	p.cancel()
}

type entry struct {
	key      string
	kind     Kind
	interval time.Duration

	snapshot Snapshot
	has      bool
	version  uint64

	subs observer.Registry[Snapshot]
	poll *poller
}

// Cache is the subscription cache. Construct one per application with New.
type Cache struct {
	t        transport.Transport
	cfg      Config
	observer Observer
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	kinds   map[string]Kind
	closed  bool
}

// New creates a cache that reads and writes through t.
func New(t transport.Transport, cfg Config) *Cache {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IdentityField == "" {
		cfg.IdentityField = DefaultIdentityField
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		t:        t,
		cfg:      cfg,
		observer: obs,
		logger:   logging.Component("cache"),
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*entry),
		kinds:    make(map[string]Kind),
	}
}

// IdentityField returns the record field used to match updates and removals.
func (c *Cache) IdentityField() string {
	return c.cfg.IdentityField
}

// Declare fixes the payload kind of key, overriding any rule.
func (c *Cache) Declare(key string, kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[key] = kind
	if e, ok := c.entries[key]; ok {
		e.kind = kind
	}
}

// KindOf returns the declared kind of key.
func (c *Cache) KindOf(key string) Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kindLocked(key)
}

func (c *Cache) kindLocked(key string) Kind {
	if k, ok := c.kinds[key]; ok {
		return k
	}
	if r, ok := c.rule(key); ok {
		return r.Kind
	}
	return KindList
}

func (c *Cache) intervalFor(key string) time.Duration {
	if r, ok := c.rule(key); ok && r.PollInterval > 0 {
		return r.PollInterval
	}
	return c.cfg.PollInterval
}

func (c *Cache) rule(key string) (Rule, bool) {
	p := endpointPath(key)
	for _, r := range c.cfg.Rules {
		if ok, _ := doublestar.Match(r.Pattern, p); ok {
			return r, true
		}
	}
	return Rule{}, false
}

// Subscribe registers fn for snapshots of key and returns the unsubscribe
// function. The first subscriber of a key starts its poller and triggers an
// immediate fetch; later subscribers share that poller and receive the
// cached snapshot right away when one exists.
func (c *Cache) Subscribe(key string, fn Subscriber, opts ...SubscribeOption) func() {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, kind: c.kindLocked(key), interval: c.intervalFor(key)}
		c.entries[key] = e
	}

	h := e.subs.Add(fn)
	sub := e.subs.Get(h)
	n := e.subs.Len()

	if e.poll == nil {
		e.poll = c.startPoller(e, !o.skipInitialFetch)
	}

	c.observer.ObserveSubscribers(endpointPath(key), c.endpointSubscribersLocked(key))
	snap, has, version := e.snapshot, e.has, e.version
	c.mu.Unlock()

	c.logger.Debug().Str("endpoint", key).Int("subscribers", n).Msg("subscribed")

	if has {
		sub.Deliver(version, snap)
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(e, h) })
	}
}

func (c *Cache) unsubscribe(e *entry, h observer.Handle) {
	c.mu.Lock()
	if !e.subs.Remove(h) {
		c.mu.Unlock()
		return
	}
	n := e.subs.Len()
	if n == 0 {
		if e.poll != nil {
			e.poll.stop()
			e.poll = nil
		}
		if c.entries[e.key] == e {
			delete(c.entries, e.key)
		}
	}
	c.observer.ObserveSubscribers(endpointPath(e.key), c.endpointSubscribersLocked(e.key))
	c.mu.Unlock()

	c.logger.Debug().Str("endpoint", e.key).Int("subscribers", n).Msg("unsubscribed")
}

// endpointSubscribersLocked counts subscribers across every key sharing the
// path of key. Caller holds c.mu.
func (c *Cache) endpointSubscribersLocked(key string) int {
	path := endpointPath(key)
	n := 0
	for k, e := range c.entries {
		if endpointPath(k) == path {
			n += e.subs.Len()
		}
	}
	return n
}

// Fetch reads key through the transport. On success the cached snapshot (if
// the key is subscribed) is replaced and every subscriber is notified before
// Fetch returns; a subscriber still busy with an older snapshot receives the
// new one as soon as that callback returns. On failure the cache is untouched and only the caller sees
// the error.
func (c *Cache) Fetch(ctx context.Context, key string) (Snapshot, error) {
	snap, err := c.read(ctx, key, SourceDirect)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return snap, nil
	}
	return c.commitLocked(e, snap), nil
}

func (c *Cache) read(ctx context.Context, key string, source Source) (Snapshot, error) {
	kind := c.KindOf(key)

	start := time.Now()
	raw, err := c.t.Get(logging.WithEndpoint(ctx, key), key)
	if err == nil {
		var snap Snapshot
		snap, err = Decode(kind, raw)
		if err == nil {
			c.observer.ObserveFetch(key, source, time.Since(start), nil)
			return snap, nil
		}
	}
	c.observer.ObserveFetch(key, source, time.Since(start), err)
	return Snapshot{}, err
}

// commitLocked stores snap on e, releases c.mu, and notifies the
// subscribers registered at the time of the write.
func (c *Cache) commitLocked(e *entry, snap Snapshot) Snapshot {
	e.version++
	snap.Version = e.version
	snap.UpdatedAt = time.Now()
	e.snapshot = snap
	e.has = true
	subs := e.subs.Snapshot()
	c.mu.Unlock()

	observer.Dispatch(subs, snap.Version, snap)
	return snap
}

// rewrite applies fn to the cached snapshot of key, if any.
func (c *Cache) rewrite(key string, fn func(Snapshot) (Snapshot, bool)) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || !e.has {
		c.mu.Unlock()
		return
	}
	next, changed := fn(e.snapshot)
	if !changed {
		c.mu.Unlock()
		c.logger.Debug().Str("endpoint", key).Msg("mutation target not in snapshot")
		return
	}
	c.commitLocked(e, next)
}

// Create posts payload to key. On success the returned record is appended
// to the cached snapshot and subscribers are notified.
func (c *Cache) Create(ctx context.Context, key string, payload any) (Record, error) {
	raw, err := c.t.Post(logging.WithEndpoint(ctx, key), key, payload)
	c.observer.ObserveMutation(key, OpCreate, err)
	if err != nil {
		return nil, err
	}

	rec := decodeRecord(raw, payload)
	c.rewrite(key, func(s Snapshot) (Snapshot, bool) {
		return s.withAppended(rec), true
	})
	return rec, nil
}

// Update puts payload to key/id. On success the record with the matching
// identity is replaced in the cached snapshot. An empty id addresses key
// itself, which suits single-object endpoints.
func (c *Cache) Update(ctx context.Context, key, id string, payload any) (Record, error) {
	raw, err := c.t.Put(logging.WithEndpoint(ctx, key), ItemPath(key, id), payload)
	c.observer.ObserveMutation(key, OpUpdate, err)
	if err != nil {
		return nil, err
	}

	rec := decodeRecord(raw, payload)
	if rec != nil && id != "" && rec.ID(c.cfg.IdentityField) == "" {
		rec = rec.Clone()
		rec[c.cfg.IdentityField] = id
	}
	c.rewrite(key, func(s Snapshot) (Snapshot, bool) {
		if rec == nil {
			return s, false
		}
		return s.withReplaced(c.cfg.IdentityField, id, rec)
	})
	return rec, nil
}

// Remove deletes key/id. On success the matching record is filtered out of
// the cached snapshot.
func (c *Cache) Remove(ctx context.Context, key, id string) (Record, error) {
	raw, err := c.t.Delete(logging.WithEndpoint(ctx, key), ItemPath(key, id))
	c.observer.ObserveMutation(key, OpRemove, err)
	if err != nil {
		return nil, err
	}

	c.rewrite(key, func(s Snapshot) (Snapshot, bool) {
		return s.withRemoved(c.cfg.IdentityField, id)
	})
	return decodeRecord(raw, nil), nil
}

// Snapshot returns the cached snapshot of key.
func (c *Cache) Snapshot(key string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.has {
		return Snapshot{}, false
	}
	return e.snapshot, true
}

// Keys returns every subscribed key, sorted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SubscriberCount returns the number of subscribers of key.
func (c *Cache) SubscriberCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.subs.Len()
	}
	return 0
}

// Polling reports whether key has an active poller.
func (c *Cache) Polling(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.poll != nil && e.poll.state == timer.Scheduled
}

// Close stops every poller, drops all entries, and waits for poll loops to
// exit. Must not be called from a subscriber callback.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for key, e := range c.entries {
		if e.poll != nil {
			e.poll.stop()
			e.poll = nil
		}
		e.subs.Clear()
		delete(c.entries, key)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// ItemPath joins an endpoint key and a record id. Any query string on key is
// dropped. An empty id returns key unchanged.
func ItemPath(key, id string) string {
	if id == "" {
		return key
	}
	return strings.TrimRight(endpointPath(key), "/") + "/" + url.PathEscape(id)
}

func endpointPath(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}
