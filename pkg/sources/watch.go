package sources

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultWatchDebounce coalesces the burst of events a spreadsheet save produces
const DefaultWatchDebounce = 5 * time.Second

// WatchConfig controls watching the source directory in schedule mode
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce" default:"5s"`
}

// ChangeFunc is called once per debounced burst with the names that changed
type ChangeFunc func(ctx context.Context, names []string)

// Watcher reports changes to source files in the catalog's directory
type Watcher struct {
	log      logrus.FieldLogger
	catalog  *Catalog
	debounce time.Duration
	onChange ChangeFunc

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	ready   chan struct{}
}

// NewWatcher creates a watcher calling onChange after debounce of quiet
func NewWatcher(log logrus.FieldLogger, catalog *Catalog, debounce time.Duration, onChange ChangeFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	return &Watcher{
		log:      log.WithField("component", "source_watcher"),
		catalog:  catalog,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. The directory is watched rather than each
// file so atomic saves, which replace the inode, are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := w.catalog.Dir()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.log.WithFields(logrus.Fields{
		"dir":      dir,
		"debounce": w.debounce,
	}).Info("Watching sources for changes")

	close(w.ready)

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			name := filepath.Base(event.Name)
			if !w.catalog.Matches(name) {
				continue
			}

			w.log.WithFields(logrus.Fields{
				"source": name,
				"op":     event.Op.String(),
			}).Debug("Source changed")

			w.queue(ctx, name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) queue(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flush(ctx)
	})
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(names)

	if len(names) == 0 || ctx.Err() != nil {
		return
	}

	w.onChange(ctx, names)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}
