// Package daemon wraps the pipeline manager with single-instance
// enforcement and exposes the operations the CLI needs against a
// running connector.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/pipeline"
)

// Daemon coordinates the background pipeline and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *journal.Store
	pipeline *pipeline.Manager
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	WatchDir     string
	JournalPath  string
	LockFilePath string
	ItemCounts   map[journal.Status]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger, mgr *pipeline.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, logger, and pipeline manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "garpconnectd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: mgr,
		logPath:  filepath.Join(cfg.Paths.LogDir, "garpconnect.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the pipeline.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another garpconnect daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.pipeline.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start pipeline: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pipeline.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("journal stats unavailable", logging.Error(err))
		counts = map[journal.Status]int{}
	}
	return Status{
		Running:      d.running.Load() && d.pipeline.Running(),
		WatchDir:     d.cfg.Paths.WatchDir,
		JournalPath:  journal.DefaultPath(d.cfg.Paths.LogDir),
		LockFilePath: d.lockPath,
		ItemCounts:   counts,
	}
}
