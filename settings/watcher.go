/*
watcher.go - Hot reload of the settings file

PURPOSE:
  Wraps a Config in an atomically swapped snapshot and replaces it when
  the file changes on disk. A file that fails to parse or validate is
  logged and ignored; the previous snapshot stays active, so a bad edit
  never takes the engine down.

DEBOUNCE:
  Editors emit bursts of write events; changes are debounced before
  reloading.
*/
package settings

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher is a Provider backed by a hot-reloaded settings file.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	logger  *slog.Logger

	// DebounceDelay is how long to wait for the write burst to settle.
	DebounceDelay time.Duration

	readyOnce sync.Once
	ready     chan struct{}
}

// NewWatcher loads the file once and returns a Provider that will track
// it. Call Watch to start tracking.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		path:          path,
		logger:        logger,
		DebounceDelay: 500 * time.Millisecond,
		ready:         make(chan struct{}),
	}
	w.current.Store(cfg)
	return w, nil
}

// Ready is closed once Watch has registered the filesystem watch. Edits
// made before then can be missed.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Config returns the active snapshot.
func (w *Watcher) Config() *Config { return w.current.Load() }

// ForStaffCategory implements Provider against the active snapshot.
func (w *Watcher) ForStaffCategory(cat StaffCategory) (CategorySettings, error) {
	return w.Config().ForStaffCategory(cat)
}

// CategoryForRole implements Provider against the active snapshot.
func (w *Watcher) CategoryForRole(role Role) (StaffCategory, error) {
	return w.Config().CategoryForRole(role)
}

// Watch blocks until ctx is canceled, reloading the snapshot when the
// file changes.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: editors replace files by rename, which drops
	// a watch on the file itself.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.readyOnce.Do(func() { close(w.ready) })

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.DebounceDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("settings watcher error", slog.String("error", err.Error()))

		case <-reload:
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.logger.Warn("settings reload rejected, keeping previous config",
					slog.String("path", w.path), slog.String("error", err.Error()))
				continue
			}
			w.current.Store(cfg)
			w.logger.Info("settings reloaded", slog.String("path", w.path))
		}
	}
}
