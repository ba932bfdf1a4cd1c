package validation

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// Default watcher configuration constants.
const (
	defaultDebounce  = 500 * time.Millisecond
	defaultSweepTick = 100 * time.Millisecond
)

// List file names inside the lists directory.
const (
	playersFile    = "players.txt"
	chestTypesFile = "chest_types.txt"
	sourcesFile    = "sources.txt"
)

// ListFileName returns the file name that stores the list for field.
func ListFileName(field model.Field) string {
	switch field {
	case model.FieldPlayer:
		return playersFile
	case model.FieldChestType:
		return chestTypesFile
	case model.FieldSource:
		return sourcesFile
	default:
		return ""
	}
}

// FieldForListFile maps a list file name back to its field.
func FieldForListFile(name string) (model.Field, bool) {
	switch filepath.Base(name) {
	case playersFile:
		return model.FieldPlayer, true
	case chestTypesFile:
		return model.FieldChestType, true
	case sourcesFile:
		return model.FieldSource, true
	default:
		return "", false
	}
}

// ListLoader reads the entries of one list file.
type ListLoader func(path string) ([]string, error)

// ReloadFunc receives freshly loaded entries for a list.
type ReloadFunc func(field model.Field, entries []string)

// Watcher watches the lists directory and hot-reloads list files when
// they change on disk. Rapid successive writes are debounced so a file
// is reloaded once after it settles.
type Watcher struct {
	dir      string
	loader   ListLoader
	apply    ReloadFunc
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	running bool

	stopCh chan struct{}
	doneCh chan struct{}

	log logger.Logger
}

// WatcherOption applies a configuration option to the Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a file must settle before it is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets a custom logger for the watcher.
func WithWatcherLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWatcher creates a watcher over dir. loader reads a list file and
// apply receives the reloaded entries.
func NewWatcher(dir string, loader ListLoader, apply ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || apply == nil {
		return nil, ErrWatcherCallback
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		loader:   loader,
		apply:    apply,
		watcher:  fsw,
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching the lists directory. Non-blocking; the event
// loop runs in a goroutine until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if w.log == nil {
		w.log = logger.Get()
	}

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.log.Info(ctx, "watching validation lists",
		logger.String("dir", w.dir),
	)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error(context.Background(), "closing list watcher", logger.Error(err))
	}
}

// run is the watcher event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	sweep := time.NewTicker(defaultSweepTick)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error(ctx, "list watcher error", logger.Error(err))

		case <-sweep.C:
			w.reloadSettled(ctx)
		}
	}
}

// handleEvent records a change to a known list file for later reload.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".txt") {
		return
	}
	if _, ok := FieldForListFile(ev.Name); !ok {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// reloadSettled reloads files whose last change passed the debounce window.
func (w *Watcher) reloadSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		field, ok := FieldForListFile(path)
		if !ok {
			continue
		}
		entries, err := w.loader(path)
		if err != nil {
			w.log.Error(ctx, "reloading validation list",
				logger.String("file", path),
				logger.Error(err),
			)
			continue
		}
		w.apply(field, entries)
		w.log.Info(ctx, "validation list reloaded",
			logger.String("field", string(field)),
			logger.Int("entries", len(entries)),
		)
	}
}
