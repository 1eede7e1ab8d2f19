package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called after the watched file settles following a change.
type ReloadFunc func(ctx context.Context) error

// ConfigWatcher watches a single file and calls a reload function once
// changes stop arriving for the debounce interval. The parent directory is
// watched rather than the file itself, because editors and config management
// tools usually replace a file by rename.
type ConfigWatcher struct {
	path     string
	reload   ReloadFunc
	logger   *slog.Logger
	debounce time.Duration
	poll     time.Duration
}

// NewConfigWatcher creates a watcher for path.
func NewConfigWatcher(path string, reload ReloadFunc, logger *slog.Logger) *ConfigWatcher {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &ConfigWatcher{
		path:     filepath.Clean(abs),
		reload:   reload,
		logger:   logger.With(slog.String("component", "config-watcher")),
		debounce: 500 * time.Millisecond,
		poll:     30 * time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (w *ConfigWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// SetPollInterval overrides the modification-time poll used when fsnotify
// is unavailable (for testing).
func (w *ConfigWatcher) SetPollInterval(d time.Duration) {
	w.poll = d
}

// Start blocks until ctx is canceled. If fsnotify cannot watch the
// directory, the watcher falls back to polling the file's modification time.
func (w *ConfigWatcher) Start(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := fw.Add(filepath.Dir(w.path)); addErr != nil {
			fw.Close() //nolint:errcheck
			fw, err = nil, addErr
		}
	}
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling config file",
			slog.String("path", w.path),
			slog.Any("error", err))
	} else {
		defer fw.Close() //nolint:errcheck
	}

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false
	arm := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(w.debounce)
		pending = true
	}

	// When fsnotify is unavailable, use nil channels (never receive) and poll.
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	var pollCh <-chan time.Time
	if fw != nil {
		eventCh = fw.Events
		errCh = fw.Errors
	} else {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		pollCh = ticker.C
	}
	lastMod := modTime(w.path)

	w.logger.Info("config watcher starting", slog.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				arm()
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", slog.Any("error", err))

		case <-pollCh:
			if m := modTime(w.path); !m.Equal(lastMod) {
				lastMod = m
				arm()
			}

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			if _, err := os.Stat(w.path); err != nil {
				w.logger.Warn("config file missing after change, keeping current settings",
					slog.String("path", w.path))
				continue
			}
			w.logger.Info("config file changed, reloading", slog.String("path", w.path))
			if err := w.reload(ctx); err != nil {
				w.logger.Error("config reload failed", slog.Any("error", err))
			}
		}
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
