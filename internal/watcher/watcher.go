// Package watcher announces XML files dropped into the watch directory
// once their size has stopped changing. Discovery combines fsnotify
// events with a periodic sweep, so files that arrive while the daemon
// is down are picked up at startup and events lost under load are
// recovered on the next sweep.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"garpconnect/internal/config"
	"garpconnect/internal/logging"
	"garpconnect/internal/services"
)

// Watcher discovers stable XML files in a single directory.
type Watcher struct {
	dir              string
	quietPeriod      time.Duration
	stabilityTimeout time.Duration
	sweepInterval    time.Duration
	logger           *slog.Logger

	files chan string

	mu      sync.Mutex
	pending map[string]struct{}
}

// New constructs a watcher for dir. queueSize bounds the discovery
// channel so a flood of files cannot outrun the workers.
func New(cfg config.Watcher, dir string, queueSize int, logger *slog.Logger) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "watcher", "new", "watch directory is empty", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	quiet := time.Duration(cfg.QuietPeriodSeconds) * time.Second
	if quiet <= 0 {
		quiet = 2 * time.Second
	}
	stability := time.Duration(cfg.StabilityTimeoutSeconds) * time.Second
	if stability <= 0 {
		stability = 30 * time.Second
	}
	sweep := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if sweep <= 0 {
		sweep = 30 * time.Second
	}

	return &Watcher{
		dir:              dir,
		quietPeriod:      quiet,
		stabilityTimeout: stability,
		sweepInterval:    sweep,
		logger:           logging.NewComponentLogger(logger, "watcher"),
		files:            make(chan string, queueSize),
		pending:          make(map[string]struct{}),
	}, nil
}

// Files delivers paths of stable XML files ready to be claimed. The
// channel is closed when Run returns.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Run watches the directory until the context is canceled. The startup
// sweep runs before the first event is handled, so files that arrived
// while the daemon was down come first.
func (w *Watcher) Run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watcher", "run", "create fsnotify watcher", err)
	}
	defer notifier.Close()

	if err := notifier.Add(w.dir); err != nil {
		return services.Wrap(services.ErrConfiguration, "watcher", "run",
			"watch directory "+w.dir, err)
	}

	w.logger.Info("watching directory", logging.String("dir", w.dir))

	var inflight sync.WaitGroup
	defer func() {
		inflight.Wait()
		close(w.files)
	}()

	w.sweep(ctx, &inflight)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx, &inflight)
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.announce(ctx, &inflight, event.Name)
		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// sweep announces every XML file currently in the directory, oldest
// name first.
func (w *Watcher) sweep(ctx context.Context, inflight *sync.WaitGroup) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("sweep failed", logging.Error(err))
		return
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		w.announce(ctx, inflight, filepath.Join(w.dir, name))
	}
}

// announce schedules a stability check for path. Files already being
// checked are skipped, so event and sweep discovery do not race.
func (w *Watcher) announce(ctx context.Context, inflight *sync.WaitGroup, path string) {
	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return
	}
	name := filepath.Base(path)

	w.mu.Lock()
	if _, busy := w.pending[name]; busy {
		w.mu.Unlock()
		return
	}
	w.pending[name] = struct{}{}
	w.mu.Unlock()

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, name)
			w.mu.Unlock()
		}()

		if err := w.waitForStability(ctx, path); err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("file never stabilized",
					logging.String(logging.FieldFile, name), logging.Error(err))
			}
			return
		}

		select {
		case w.files <- path:
			w.logger.Info("file ready", logging.String(logging.FieldFile, name))
		case <-ctx.Done():
		}
	}()
}

// waitForStability polls the file size until it stays unchanged for a
// full quiet period. Export jobs write the file in chunks, so acting on
// the create event alone would read half a document.
func (w *Watcher) waitForStability(ctx context.Context, path string) error {
	deadline := time.After(w.stabilityTimeout)
	var prevSize int64 = -1

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return services.Wrap(services.ErrTransient, "watcher", "stability check",
				"file size kept changing past the stability timeout", nil)
		case <-time.After(w.quietPeriod):
			info, err := os.Stat(path)
			if err != nil {
				return services.Wrap(services.ErrNotFound, "watcher", "stability check",
					"file disappeared before processing", err)
			}
			size := info.Size()
			if size == prevSize && size > 0 {
				return nil
			}
			prevSize = size
		}
	}
}
