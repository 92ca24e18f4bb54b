package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
	"garpconnect/internal/logging"
	"garpconnect/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Process a single export file without starting the watcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *journal.Store) error {
				path, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("inspect file %q: %w", path, err)
				}
				if info.IsDir() {
					return fmt.Errorf("%q is a directory", path)
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				mgr := pipeline.NewManager(cfg, store, logger)
				if err := mgr.ProcessFile(cmd.Context(), path); err != nil {
					if errors.Is(err, pipeline.ErrAlreadyClaimed) {
						return fmt.Errorf("file %q is already being processed", path)
					}
					return fmt.Errorf("processing failed (file moved to %s): %w", cfg.Paths.ErrorDir, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %s\n", path)
				return nil
			})
		},
	}
}
