// Package pipeline coordinates the flow from discovered XML file to a
// terminal directory: claim, parse, book with the carrier, print, mail,
// and move. Workers own one file end to end; the filesystem claim is
// the only cross-worker synchronization.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"garpconnect/internal/carrier"
	"garpconnect/internal/carrier/dhl"
	"garpconnect/internal/carrier/postnord"
	"garpconnect/internal/config"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/notifications"
	"garpconnect/internal/printing"
	"garpconnect/internal/shipment"
	"garpconnect/internal/watcher"
)

// Manager runs the connector pipeline.
type Manager struct {
	cfg      *config.Config
	store    *journal.Store
	clients  map[shipment.Carrier]carrier.Client
	printer  *printing.Printer
	notifier notifications.Service
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a pipeline manager with carrier clients built
// from the configuration.
func NewManager(cfg *config.Config, store *journal.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}

	clients := make(map[shipment.Carrier]carrier.Client)
	if cfg.DHL.Enabled {
		clients[shipment.CarrierDHL] = dhl.New(cfg.DHL, cfg.Sender, logger)
	}
	if cfg.PostNord.Enabled {
		clients[shipment.CarrierPostNord] = postnord.New(cfg.PostNord, cfg.Sender, cfg.Printing.LabelFormat, logger)
	}

	return NewManagerWithServices(cfg, store, logger, clients,
		printing.New(cfg.Printing, logger),
		notifications.NewService(cfg.SMTP, logger))
}

// NewManagerWithServices constructs a manager with injected
// collaborators. Used in tests.
func NewManagerWithServices(cfg *config.Config, store *journal.Store, logger *slog.Logger,
	clients map[shipment.Carrier]carrier.Client, printer *printing.Printer, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		clients:  clients,
		printer:  printer,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Start recovers leftover claims, then runs the watcher and the worker
// pool until Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("pipeline already running")
	}

	if err := m.RecoverProcessing(); err != nil {
		m.mu.Unlock()
		return err
	}

	w, err := watcher.New(m.cfg.Watcher, m.cfg.Paths.WatchDir, m.cfg.Pipeline.QueueSize, m.logger)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if err := w.Run(runCtx); err != nil && runCtx.Err() == nil {
			m.logger.Error("watcher stopped", logging.Error(err))
		}
	}()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i, w.Files())
	}

	m.logger.Info("pipeline started",
		logging.Int("workers", workers),
		logging.String("watch_dir", m.cfg.Paths.WatchDir))
	return nil
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stop cancels the watcher and waits for in-flight work to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("pipeline stopped")
}

func (m *Manager) runWorker(ctx context.Context, id int, files <-chan string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-files:
			if !ok {
				return
			}
			if err := m.ProcessFile(ctx, path); err != nil {
				if errors.Is(err, ErrAlreadyClaimed) {
					logger.Debug("file already claimed", logging.String(logging.FieldFile, path))
					continue
				}
				logger.Error("processing failed", logging.String(logging.FieldFile, path), logging.Error(err))
			}
		}
	}
}
