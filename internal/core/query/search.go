package query

import (
	"context"
	"maps"
	"net/url"
	"sync"
	"time"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/observer"
)

// Sort orders understood by the ERP API.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SearchParams are sent with every search request.
type SearchParams struct {
	Term      string
	SortBy    string
	SortOrder string
	Filters   map[string]string
}

func (p SearchParams) values() url.Values {
	v := url.Values{
		ParamSearch:   {p.Term},
		ParamOrderBy:  {p.SortBy},
		ParamOrderDir: {p.SortOrder},
	}
	for k, f := range p.Filters {
		v.Set(k, f)
	}
	return v
}

// SearchState is the latest search result.
type SearchState struct {
	Params  SearchParams
	Key     string
	Data    cache.Snapshot
	Loading bool
	Err     error
}

// Search runs server-side search, sort and filtering against a list
// endpoint. Term changes are debounced; sort and filter changes are sent at
// once. Responses to superseded requests are dropped.
type Search struct {
	ctx      context.Context
	c        *cache.Cache
	key      string
	debounce *Debouncer

	mu        sync.Mutex
	params    SearchParams
	seq       uint64
	state     SearchState
	version   uint64
	closed    bool
	listeners observer.Registry[SearchState]
}

// NewSearch creates a search over key. A zero debounce uses DefaultDebounce.
// Nothing is requested until a parameter changes or Run is called.
func NewSearch(ctx context.Context, c *cache.Cache, key string, debounce time.Duration) *Search {
	return &Search{
		ctx:      ctx,
		c:        c,
		key:      key,
		debounce: NewDebouncer(debounce),
		params:   SearchParams{SortOrder: SortAsc, Filters: map[string]string{}},
	}
}

// SetTerm changes the search term and schedules a request after the quiet
// period.
func (s *Search) SetTerm(term string) {
	s.mu.Lock()
	s.params.Term = term
	s.mu.Unlock()
	s.debounce.Trigger(s.run)
}

// SetSort changes the sort column and direction.
func (s *Search) SetSort(by, order string) {
	if order != SortDesc {
		order = SortAsc
	}
	s.mu.Lock()
	s.params.SortBy = by
	s.params.SortOrder = order
	s.mu.Unlock()
	s.debounce.Now(s.run)
}

// SetFilter sets one filter. An empty value removes it.
func (s *Search) SetFilter(key, value string) {
	s.mu.Lock()
	if value == "" {
		delete(s.params.Filters, key)
	} else {
		s.params.Filters[key] = value
	}
	s.mu.Unlock()
	s.debounce.Now(s.run)
}

// ClearFilters removes every filter.
func (s *Search) ClearFilters() {
	s.mu.Lock()
	clear(s.params.Filters)
	s.mu.Unlock()
	s.debounce.Now(s.run)
}

// Run sends the current parameters right away.
func (s *Search) Run() { s.debounce.Now(s.run) }

// Params returns a copy of the current parameters.
func (s *Search) Params() SearchParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paramsLocked()
}

func (s *Search) paramsLocked() SearchParams {
	p := s.params
	p.Filters = maps.Clone(s.params.Filters)
	return p
}

// Key returns the request key for the current parameters.
func (s *Search) Key() string {
	return WithParams(s.key, s.Params().values())
}

func (s *Search) run() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	params := s.paramsLocked()
	key := WithParams(s.key, params.values())
	s.state.Params = params
	s.state.Key = key
	s.state.Loading = true
	s.commitLocked()

	snap, err := s.c.Fetch(s.ctx, key)

	s.mu.Lock()
	if seq != s.seq || s.closed {
		s.mu.Unlock()
		logger := logging.ForEndpoint("search", key)
		logger.Debug().Uint64("seq", seq).Msg("discarding stale search result")
		return
	}
	s.state.Loading = false
	s.state.Err = err
	if err == nil {
		s.state.Data = snap
	}
	s.commitLocked()
}

func (s *Search) commitLocked() {
	s.version++
	version, st := s.version, s.state
	subs := s.listeners.Snapshot()
	s.mu.Unlock()

	observer.Dispatch(subs, version, st)
}

func (s *Search) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change.
func (s *Search) Subscribe(fn func(SearchState)) func() {
	h := s.listeners.Add(fn)
	return func() { s.listeners.Remove(h) }
}

// Close drops any pending request and ignores results still in flight.
func (s *Search) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debounce.Stop()
	s.listeners.Clear()
}
