package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"garpconnect/internal/config"
	"garpconnect/internal/daemon"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := journal.Open(journal.DefaultPath(cfg.Paths.LogDir))
	if err != nil {
		logger.Error("open journal store", logging.Error(err))
		return
	}

	mgr := pipeline.NewManager(cfg, store, logger)
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log", Exclude: []string{d.LogPath()}},
		logging.RetentionTarget{Dir: cfg.Paths.DoneDir},
		logging.RetentionTarget{Dir: cfg.Paths.ErrorDir},
	)

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("garpconnectd shutting down")
	d.Stop()
}
