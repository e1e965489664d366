package desk

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/logging"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/transport"
)

// undoTimeout bounds the request an undo callback makes.
const undoTimeout = 30 * time.Second

// Notification types pushed by Actions.
const (
	TypeCreated      = "record_created"
	TypeUpdated      = "record_updated"
	TypeRemoved      = "record_removed"
	TypeActionFailed = "action_failed"
)

// Actions runs cache mutations and reports each outcome to the notification
// queue. Successful mutations carry an undo callback that reverses them.
type Actions struct {
	ctx     context.Context
	cache   *cache.Cache
	queue   *notify.Queue
	idField string
	logger  zerolog.Logger
}

// NewActions binds actions to c and q. Undo requests run under ctx.
func NewActions(ctx context.Context, c *cache.Cache, q *notify.Queue) *Actions {
	return &Actions{
		ctx:     ctx,
		cache:   c,
		queue:   q,
		idField: c.IdentityField(),
		logger:  logging.Component("actions"),
	}
}

// Create posts payload to key. The undo removes the created record.
func (a *Actions) Create(ctx context.Context, key string, payload any) (cache.Record, error) {
	rec, err := a.cache.Create(ctx, key, payload)
	if err != nil {
		a.failed("Create failed", key, err)
		return nil, err
	}

	id := rec.ID(a.idField)
	var undo func()
	if id != "" {
		undo = func() {
			a.revert(key, "remove created record", func(ctx context.Context) error {
				_, err := a.cache.Remove(ctx, key, id)
				return err
			})
		}
	}

	a.queue.Add(notify.Record{
		Type:     TypeCreated,
		Severity: notify.SeveritySuccess,
		Title:    "Created " + singular(key),
		Message:  describe(rec, id),
		Undoable: undo != nil,
		Undo:     undo,
	})
	return rec, nil
}

// Update puts payload to key/id. When the previous record is cached the undo
// puts it back.
func (a *Actions) Update(ctx context.Context, key, id string, payload any) (cache.Record, error) {
	prev, hasPrev := a.previous(key, id)

	rec, err := a.cache.Update(ctx, key, id, payload)
	if err != nil {
		a.failed("Update failed", key, err)
		return nil, err
	}

	var undo func()
	if hasPrev {
		undo = func() {
			a.revert(key, "restore previous record", func(ctx context.Context) error {
				_, err := a.cache.Update(ctx, key, id, prev)
				return err
			})
		}
	}

	a.queue.Add(notify.Record{
		Type:     TypeUpdated,
		Severity: notify.SeveritySuccess,
		Title:    "Updated " + singular(key),
		Message:  describe(rec, id),
		Undoable: undo != nil,
		Undo:     undo,
	})
	return rec, nil
}

// Remove deletes key/id. When the record is cached the undo re-creates it.
func (a *Actions) Remove(ctx context.Context, key, id string) (cache.Record, error) {
	prev, hasPrev := a.previous(key, id)

	rec, err := a.cache.Remove(ctx, key, id)
	if err != nil {
		a.failed("Delete failed", key, err)
		return nil, err
	}

	var undo func()
	if hasPrev {
		undo = func() {
			a.revert(key, "re-create removed record", func(ctx context.Context) error {
				_, err := a.cache.Create(ctx, key, prev)
				return err
			})
		}
	}

	a.queue.Add(notify.Record{
		Type:     TypeRemoved,
		Severity: notify.SeveritySuccess,
		Title:    "Deleted " + singular(key),
		Message:  describe(prev, id),
		Undoable: undo != nil,
		Undo:     undo,
	})
	return rec, nil
}

func (a *Actions) previous(key, id string) (cache.Record, bool) {
	snap, ok := a.cache.Snapshot(key)
	if !ok {
		return nil, false
	}
	if snap.Kind == cache.KindSingle {
		return snap.Item.Clone(), snap.Item != nil
	}
	rec, ok := snap.Find(a.idField, id)
	return rec.Clone(), ok
}

func (a *Actions) failed(title, key string, err error) {
	a.logger.Warn().Err(err).Str("endpoint", key).Msg(title)
	a.queue.Add(notify.Record{
		Type:     TypeActionFailed,
		Severity: notify.SeverityError,
		Title:    title,
		Message:  transport.Message(err),
		Details:  err.Error(),
	})
}

func (a *Actions) revert(key, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(a.ctx, undoTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		a.logger.Error().Err(err).Str("endpoint", key).Msgf("undo: %s", what)
		a.queue.Add(notify.Record{
			Type:     TypeActionFailed,
			Severity: notify.SeverityError,
			Title:    "Undo failed",
			Message:  transport.Message(err),
			Details:  err.Error(),
		})
	}
}

// singular names the resource behind key, e.g. "vendor" for
// /api/procurement/vendors?page=2.
func singular(key string) string {
	p, _, _ := strings.Cut(key, "?")
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "." || name == "/" {
		return "record"
	}
	name = strings.ReplaceAll(name, "-", " ")
	switch {
	case strings.HasSuffix(name, "ies"):
		return strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "ses"):
		return strings.TrimSuffix(name, "es")
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		return strings.TrimSuffix(name, "s")
	}
	return name
}

func describe(rec cache.Record, id string) string {
	for _, field := range []string{"name", "title", "code", "number"} {
		if v := rec.String(field); v != "" {
			return v
		}
	}
	if id != "" {
		return fmt.Sprintf("#%s", id)
	}
	return ""
}
