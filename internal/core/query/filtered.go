package query

import (
	"maps"
	"strings"
	"sync"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/observer"
)

// FilterQuery is the free-text filter key. It matches any field.
const FilterQuery = "q"

// FilteredState is a Live state narrowed by the active filters.
type FilteredState struct {
	Items   []cache.Record
	Total   int
	Filters map[string]string
	Loading bool
	Err     error
}

// Filtered applies filters client-side to whatever a Live view holds. The
// result is recomputed synchronously whenever the view or the filters change.
type Filtered struct {
	live  *Live
	unsub func()

	mu        sync.Mutex
	filters   map[string]string
	last      LiveState
	state     FilteredState
	version   uint64
	listeners observer.Registry[FilteredState]
}

func NewFiltered(live *Live, filters map[string]string) *Filtered {
	f := &Filtered{
		live:    live,
		filters: maps.Clone(filters),
	}
	if f.filters == nil {
		f.filters = map[string]string{}
	}

	f.mu.Lock()
	f.last = live.State()
	f.recomputeLocked()
	f.mu.Unlock()

	f.unsub = live.Subscribe(f.onLive)
	return f
}

func (f *Filtered) onLive(st LiveState) {
	f.mu.Lock()
	f.last = st
	f.recomputeLocked()
	f.commitLocked()
}

// SetFilter sets one filter. An empty value removes it.
func (f *Filtered) SetFilter(key, value string) {
	f.mu.Lock()
	if value == "" {
		delete(f.filters, key)
	} else {
		f.filters[key] = value
	}
	f.recomputeLocked()
	f.commitLocked()
}

// SetFilters replaces every filter.
func (f *Filtered) SetFilters(filters map[string]string) {
	f.mu.Lock()
	f.filters = maps.Clone(filters)
	if f.filters == nil {
		f.filters = map[string]string{}
	}
	f.recomputeLocked()
	f.commitLocked()
}

func (f *Filtered) recomputeLocked() {
	all := f.last.Data.Records()
	items := make([]cache.Record, 0, len(all))
	for _, r := range all {
		if Match(r, f.filters) {
			items = append(items, r)
		}
	}
	f.state = FilteredState{
		Items:   items,
		Total:   len(all),
		Filters: maps.Clone(f.filters),
		Loading: f.last.Loading,
		Err:     f.last.Err,
	}
}

func (f *Filtered) commitLocked() {
	f.version++
	version, st := f.version, f.state
	subs := f.listeners.Snapshot()
	f.mu.Unlock()

	observer.Dispatch(subs, version, st)
}

func (f *Filtered) State() FilteredState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for every recomputation.
func (f *Filtered) Subscribe(fn func(FilteredState)) func() {
	h := f.listeners.Add(fn)
	return func() { f.listeners.Remove(h) }
}

// Close detaches from the Live view. The view itself stays open.
func (f *Filtered) Close() {
	f.unsub()
	f.listeners.Clear()
}

// Match reports whether rec satisfies every filter. The FilterQuery filter is
// a case-insensitive substring match over all fields; the rest are
// case-insensitive equality on the named field. Empty values match anything.
func Match(rec cache.Record, filters map[string]string) bool {
	for k, v := range filters {
		if v == "" {
			continue
		}
		if k == FilterQuery {
			if !containsFold(rec, v) {
				return false
			}
			continue
		}
		if !strings.EqualFold(rec.String(k), v) {
			return false
		}
	}
	return true
}

func containsFold(rec cache.Record, needle string) bool {
	needle = strings.ToLower(needle)
	for k := range rec {
		if strings.Contains(strings.ToLower(rec.String(k)), needle) {
			return true
		}
	}
	return false
}
