package query

import (
	"context"
	"sync"

	"github.com/colonyops/erpsync/internal/core/cache"
)

// DefaultPageSize matches the ERP API default.
const DefaultPageSize = 20

// PageState is the accumulated result of a Pager.
type PageState struct {
	Items   []cache.Record
	Page    int
	HasMore bool
	Loading bool
	Err     error
}

// Pager walks a list endpoint page by page. Pages are read with cache.Fetch,
// so a page key that is also subscribed elsewhere gets refreshed too.
type Pager struct {
	c    *cache.Cache
	key  string
	size int

	mu    sync.Mutex
	seq   uint64
	state PageState
}

func NewPager(c *cache.Cache, key string, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{c: c, key: key, size: pageSize, state: PageState{HasMore: true}}
}

// PageKey returns the cache key of page.
func (p *Pager) PageKey(page int) string {
	return WithParams(p.key, pageParams(page, p.size))
}

// Load reads page. With appendPage its records are added to what is already
// loaded, otherwise they replace it. A load superseded by a later one is
// dropped.
func (p *Pager) Load(ctx context.Context, page int, appendPage bool) error {
	if page < 1 {
		page = 1
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.state.Loading = true
	p.mu.Unlock()

	snap, err := p.c.Fetch(ctx, p.PageKey(page))

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		return err
	}

	p.state.Loading = false
	if err != nil {
		p.state.Err = err
		return err
	}

	records := snap.Records()
	if appendPage {
		items := make([]cache.Record, 0, len(p.state.Items)+len(records))
		items = append(items, p.state.Items...)
		p.state.Items = append(items, records...)
	} else {
		p.state.Items = records
	}
	p.state.Page = page
	p.state.HasMore = len(records) == p.size
	p.state.Err = nil
	return nil
}

// Next appends the following page when there is one.
func (p *Pager) Next(ctx context.Context) error {
	p.mu.Lock()
	more, page := p.state.HasMore, p.state.Page
	p.mu.Unlock()

	if !more {
		return nil
	}
	return p.Load(ctx, page+1, true)
}

// Reset clears loaded pages.
func (p *Pager) Reset() {
	p.mu.Lock()
	p.seq++
	p.state = PageState{HasMore: true}
	p.mu.Unlock()
}

func (p *Pager) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HasMore reports whether the last page was full.
func (p *Pager) HasMore() bool {
	return p.State().HasMore
}
