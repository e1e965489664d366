package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/erpsync/internal/core/timer"
)

// startPoller launches the poll loop for e. Caller holds c.mu.
func (c *Cache) startPoller(e *entry, immediate bool) *poller {
	ctx, cancel := context.WithCancel(c.ctx)
	p := &poller{state: timer.Scheduled, cancel: cancel}

	c.wg.Add(1)
	go c.pollLoop(ctx, e, p, immediate)

	c.logger.Debug().
		Str("endpoint", e.key).
		Dur("interval", e.interval).
		Msg("poller started")
	return p
}

// pollLoop fetches e.key on every tick until ctx is cancelled. Poll failures
// are logged and never reach subscribers.
func (c *Cache) pollLoop(ctx context.Context, e *entry, p *poller, immediate bool) {
	defer c.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if immediate {
		c.poll(ctx, e, p)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug().Str("endpoint", e.key).Msg("poller stopped")
			return
		case <-ticker.C:
			c.poll(ctx, e, p)
		}
	}
}

func (c *Cache) poll(ctx context.Context, e *entry, p *poller) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("endpoint", e.key).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("subscriber panicked during poll")
		}
	}()

	// The request rides the cache context so an unsubscribe mid-flight does
	// not abort it; the result is discarded below instead.
	snap, err := c.read(c.ctx, e.key, SourcePoll)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", e.key).Msg("poll failed")
		return
	}

	c.mu.Lock()
	if c.entries[e.key] != e || e.poll != p {
		c.mu.Unlock()
		c.logger.Debug().Str("endpoint", e.key).Msg("discarding poll result for inactive entry")
		return
	}
	c.commitLocked(e, snap)
}
