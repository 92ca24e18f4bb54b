package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"garpconnect/internal/daemon"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the connector in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := journal.Open(journal.DefaultPath(cfg.Paths.LogDir))
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}

			mgr := pipeline.NewManager(cfg, store, logger)
			d, err := daemon.New(cfg, store, logger, mgr)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
				logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log", Exclude: []string{d.LogPath()}},
				logging.RetentionTarget{Dir: cfg.Paths.DoneDir},
				logging.RetentionTarget{Dir: cfg.Paths.ErrorDir},
			)

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s; press Ctrl+C to stop\n", cfg.Paths.WatchDir)
			<-signalCtx.Done()
			d.Stop()
			return nil
		},
	}
}
