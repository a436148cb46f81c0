package invalidate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/macropower/stitch/pkg/log"
	"github.com/macropower/stitch/pkg/rule"
)

// Event is sent to subscribers. It is one of [EventReload] or [EventError].
type Event any

// EventReload signals that documents rendered before it are stale and the
// session should reload.
type EventReload struct {
	// Path is the data module that changed.
	Path string
	// Rules are the identities of the rules reading Path.
	Rules []string
}

// EventError reports a failure of the change notification source.
type EventError struct {
	Err error
}

// Invalidator drops cached values. It is implemented by [*data.Cache].
type Invalidator interface {
	Invalidate(path string) bool
}

// Decision is the outcome of one change notification.
type Decision struct {
	Path string
	// Rules read Path, in declaration order.
	Rules []*rule.Rule
	// Invalidated reports whether a valid cache entry was dropped.
	Invalidated bool
	// Reload reports whether a full reload is required.
	Reload bool
}

// Controller invalidates cached data modules and decides when a reload is
// required.
type Controller struct {
	cache     Invalidator
	rules     []*rule.Rule
	listeners []chan<- Event
	mu        sync.RWMutex
}

// NewController creates a [Controller] for rules, invalidating entries in
// cache.
func NewController(cache Invalidator, rules []*rule.Rule) *Controller {
	return &Controller{cache: cache, rules: rules}
}

// Handle processes a change notification for the file at path.
func (c *Controller) Handle(ctx context.Context, path string) Decision {
	path = filepath.Clean(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	d := Decision{
		Path:        path,
		Invalidated: c.cache.Invalidate(path),
	}

	for _, r := range c.rules {
		if r.UsesDataModule(path) {
			d.Rules = append(d.Rules, r)
		}
	}

	d.Reload = len(d.Rules) > 0

	logger := log.WithContext(ctx).With(slog.String("path", path))
	if !d.Reload {
		logger.DebugContext(ctx, "change does not affect any module group")

		return d
	}

	ids := make([]string, 0, len(d.Rules))
	for _, r := range d.Rules {
		ids = append(ids, r.String())
	}

	logger.InfoContext(ctx, "data module changed, reload required",
		slog.Any("rules", ids),
		slog.Bool("invalidated", d.Invalidated),
	)

	c.broadcast(ctx, EventReload{Path: path, Rules: ids})

	return d
}

// SendError broadcasts err as an [EventError].
func (c *Controller) SendError(ctx context.Context, err error) {
	log.WithContext(ctx).ErrorContext(ctx, "watch data modules", slog.Any("error", err))
	c.broadcast(ctx, EventError{Err: err})
}

// WatchedPaths returns the sorted, unique data module paths of all rules.
func (c *Controller) WatchedPaths() []string {
	var paths []string
	for _, r := range c.rules {
		paths = append(paths, r.DataModules...)
	}

	slices.Sort(paths)

	return slices.Compact(paths)
}

// Subscribe registers ch to receive events. Sends block until ch receives
// or the handling context is done.
func (c *Controller) Subscribe(ch chan<- Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, ch)
}

func (c *Controller) broadcast(ctx context.Context, evt Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	log.WithContext(ctx).DebugContext(ctx, "broadcasting event",
		slog.String("event", fmt.Sprintf("%T", evt)),
	)

	for _, ch := range c.listeners {
		select {
		case ch <- evt:
		case <-ctx.Done():
			return
		}
	}
}
