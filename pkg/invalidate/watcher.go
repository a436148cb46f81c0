package invalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/stitch/pkg/log"
)

// Watcher forwards file system changes of data modules to a [Controller].
//
// Parent directories are watched rather than the files themselves, so
// editors that save by renaming a temporary file are still observed.
type Watcher struct {
	watcher    *fsnotify.Watcher
	controller *Controller
	files      map[string]struct{}
	dirs       map[string]struct{}
}

// NewWatcher creates a [Watcher] for the controller's data modules.
// Directories that do not exist are skipped with a warning.
func NewWatcher(ctx context.Context, controller *Controller) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fw,
		controller: controller,
		files:      make(map[string]struct{}),
		dirs:       make(map[string]struct{}),
	}

	logger := log.WithContext(ctx)

	for _, p := range controller.WatchedPaths() {
		w.files[p] = struct{}{}

		dir := filepath.Dir(p)
		if _, ok := w.dirs[dir]; ok {
			continue
		}

		err := fw.Add(dir)
		if errors.Is(err, os.ErrNotExist) {
			logger.WarnContext(ctx, "data module directory does not exist, not watching",
				slog.String("dir", dir),
			)

			continue
		}
		if err != nil {
			closeErr := fw.Close()

			return nil, errors.Join(fmt.Errorf("add path to watcher: %w", err), closeErr)
		}

		w.dirs[dir] = struct{}{}
	}

	logger.DebugContext(ctx, "added file watchers",
		slog.Int("files", len(w.files)),
		slog.Int("dirs", len(w.dirs)),
	)

	return w, nil
}

// Dirs returns the sorted watched directories.
func (w *Watcher) Dirs() []string {
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}

	slices.Sort(dirs)

	return dirs
}

// Run handles events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if _, watched := w.files[filepath.Clean(evt.Name)]; !watched {
				continue
			}

			// Ignore events that are not related to file content changes.
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}

			log.WithContext(ctx).DebugContext(ctx, "data module event",
				slog.String("event", evt.String()),
			)

			w.controller.Handle(ctx, evt.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			w.controller.SendError(ctx, err)
		}
	}
}

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}

	return nil
}
