// Package watch keeps the index current while files change. Filesystem
// events are debounced into batches so a save storm from an editor or
// a branch switch becomes one update instead of hundreds.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/semidx/semidx/internal/config"
	"github.com/semidx/semidx/internal/discover"
	"github.com/semidx/semidx/internal/index"
)

// DefaultDebounce is the quiet period before a batch of events is
// flushed to the updater.
const DefaultDebounce = 500 * time.Millisecond

// Watcher wires fsnotify events into incremental index updates.
type Watcher struct {
	root     string
	updater  *index.Updater
	cfg      config.DiscoveryConfig
	debounce time.Duration
	logger   *slog.Logger

	// flushed receives each batch's paths after processing; tests use
	// it to synchronize. Nil outside tests.
	flushed chan []string
}

// New creates a Watcher for the project at root.
func New(root string, updater *index.Updater, cfg config.DiscoveryConfig, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:     root,
		updater:  updater,
		cfg:      cfg,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches until the context is canceled. Directories created while
// watching are added to the watch set; update failures are logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addDirs(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if rel, keep := w.filterEvent(fsw, event); keep {
				pending[rel] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			w.flush(ctx, paths)
		}
	}
}

// filterEvent maps an fsnotify event to a relative indexable path.
// New directories are added to the watch set as a side effect.
func (w *Watcher) filterEvent(fsw *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if watchable(filepath.Base(rel)) {
				_ = w.addDirs(fsw, event.Name)
			}
			return "", false
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	if !discover.Indexable(rel, w.cfg) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) flush(ctx context.Context, paths []string) {
	w.logger.Debug("flushing watch batch", "files", len(paths))

	result, err := w.updater.UpdateFiles(ctx, paths)
	if err != nil {
		w.logger.Error("watch update failed", "error", err)
	} else {
		w.logger.Info("index updated",
			"indexed", result.FilesIndexed,
			"removed", result.FilesRemoved,
			"skipped", result.FilesSkipped,
			"failed", result.FilesFailed)
	}

	if w.flushed != nil {
		select {
		case w.flushed <- paths:
		case <-ctx.Done():
		}
	}
}

// addDirs registers dir and every watchable subdirectory.
func (w *Watcher) addDirs(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && !watchable(name) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// watchable reports whether a directory name is worth watching.
func watchable(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch name {
	case "node_modules", "vendor", "dist", "build", "target", "__pycache__", "venv":
		return false
	}
	return true
}
