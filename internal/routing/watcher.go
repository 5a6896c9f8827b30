package routing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/log"
	"github.com/mattjoyce/grhooks/internal/metrics"
)

const (
	DefaultDebounce = 250 * time.Millisecond

	defaultRetryInitial    = 100 * time.Millisecond
	defaultRetryMax        = time.Second
	defaultRetryMaxElapsed = 5 * time.Second
)

// Watcher rebuilds a Table whenever its configuration source changes.
type Watcher struct {
	source   string
	table    *Table
	logger   *slog.Logger
	debounce time.Duration
	backoff  func() backoff.BackOff
	onReload func(*config.Config)
}

// Option configures a Watcher.
type Option func(w *Watcher)

// WithLogger sets the logger for the Watcher.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithDebounce sets how long the Watcher waits for a burst of filesystem
// events to settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithBackoff sets the retry policy used when the source is briefly
// unreadable, e.g. during an editor's rename-into-place save.
func WithBackoff(initialInterval, maxInterval, maxElapsedTime time.Duration) Option {
	return func(w *Watcher) {
		w.backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initialInterval
			b.MaxInterval = maxInterval
			b.MaxElapsedTime = maxElapsedTime
			return b
		}
	}
}

// OnReload registers fn to be called with every configuration that was
// applied to the table.
func OnReload(fn func(*config.Config)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a Watcher for source that keeps table up to date.
func NewWatcher(source string, table *Table, opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		table:    table,
		logger:   log.WithComponent("routing"),
		debounce: DefaultDebounce,
	}
	WithBackoff(defaultRetryInitial, defaultRetryMax, defaultRetryMaxElapsed)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the source until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	absSource, err := filepath.Abs(w.source)
	if err != nil {
		return fmt.Errorf("failed to resolve config path %q: %w", w.source, err)
	}
	info, err := os.Stat(absSource)
	if err != nil {
		return fmt.Errorf("config source not found: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	// Editors replace files by renaming over them, which drops a watch on the
	// file itself. Watching the parent directory survives that.
	watchDir, only := absSource, ""
	if !info.IsDir() {
		watchDir, only = filepath.Dir(absSource), absSource
	}
	if err := fsw.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}
	w.logger.Info("Watching configuration", "path", watchDir)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if only != "" && filepath.Clean(event.Name) != only {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			w.logger.Debug("Configuration changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Filesystem watch error", "error", err)

		case <-timer.C:
			if err := w.Reload(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Reload failed, keeping previous routing table", "error", err)
			}
		}
	}
}

// Reload rebuilds the table from the source once. Missing files are retried
// with backoff; any other load error fails immediately. On failure the
// active table is left as it was.
func (w *Watcher) Reload(ctx context.Context) error {
	var cfg *config.Config
	operation := func() error {
		var err error
		cfg, err = config.Load(w.source)
		if err == nil {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Debug("Configuration unreadable, retrying", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(w.backoff(), ctx), notify); err != nil {
		metrics.ReloadsTotal.WithLabelValues("failed").Inc()
		return err
	}

	for _, warning := range cfg.Warnings {
		w.logger.Warn("Configuration warning", "warning", warning)
	}

	previous := w.table.Fingerprint()
	if !w.table.Replace(cfg.Webhooks) {
		metrics.ReloadsTotal.WithLabelValues("unchanged").Inc()
		w.logger.Debug("Configuration unchanged", "fingerprint", config.ShortHash(previous))
		return nil
	}

	metrics.ReloadsTotal.WithLabelValues("applied").Inc()
	w.logger.Info("Routing table reloaded",
		"routes", w.table.Len(),
		"previous", config.ShortHash(previous),
		"fingerprint", config.ShortHash(w.table.Fingerprint()),
	)
	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}
