package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/recovery"
)

// DefaultDebounce coalesces the burst of events an editor produces on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-applies a config file to a session whenever the file changes.
// A file that fails to parse is logged and ignored; the session keeps its
// previous desired state.
type Watcher struct {
	path     string
	session  recovery.Transactor
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// Logger for debug output (optional)
	logger *slog.Logger

	mu        sync.Mutex
	onApplied func(cfg *Config, err error)
}

// NewWatcher starts watching the directory of path. Call Run to process
// changes.
func NewWatcher(path string, session recovery.Transactor, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		session:  session,
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logger,
	}, nil
}

// SetDebounce changes the quiet period before a change is applied.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnApplied sets a callback invoked after each reload attempt. err is the
// load or transaction error, nil on success.
func (w *Watcher) OnApplied(fn func(cfg *Config, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onApplied = fn
}

// Run processes file changes until ctx is done. It closes the underlying
// watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("config watcher error", "path", w.path, "error", err)
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		}
		w.applied(nil, err)
		return
	}

	err = w.session.Transaction(ctx, func(_ context.Context, tx *capture.Tx) error {
		return cfg.Apply(tx)
	})
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config reload failed", "path", w.path, "error", err)
		}
	} else if w.logger != nil {
		w.logger.Info("config applied", "path", w.path, "device", cfg.Device, "active", cfg.Active)
	}
	w.applied(cfg, err)
}

func (w *Watcher) applied(cfg *Config, err error) {
	w.mu.Lock()
	fn := w.onApplied
	w.mu.Unlock()
	if fn != nil {
		fn(cfg, err)
	}
}
