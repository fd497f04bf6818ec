package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher calls onChange after a file has been written. Bursts of writes
// within the debounce interval trigger a single call.
type Watcher struct {
	path     string
	onChange func(ctx context.Context) error
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	stopped bool
}

func NewWatcher(path string, onChange func(ctx context.Context) error, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches the file's directory so that editors replacing the file
// are noticed too. Events stop when ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			w.logger.Error("failed to close watcher", "error", closeErr)
		}
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.fs = fsw
	w.mu.Unlock()

	go w.loop(ctx)
	w.logger.Info("watching seed file", "path", w.path)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule(ctx)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.onChange(ctx); err != nil {
			w.logger.Error("reload after file change failed", "path", w.path, "error", err)
			return
		}
		w.logger.Info("reloaded after file change", "path", w.path)
	})
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.fs == nil {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fs.Close()
}
