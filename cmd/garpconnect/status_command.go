package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
)

// statusOrder fixes the display order of journal statuses.
var statusOrder = []journal.Status{
	journal.StatusPending,
	journal.StatusClaimed,
	journal.StatusSubmitting,
	journal.StatusCompleted,
	journal.StatusFailed,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connector and journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *journal.Store) error {
				stdout := cmd.OutOrStdout()
				colorize := isTerminal(stdout)

				running := daemonRunning(cfg)
				fmt.Fprintln(stdout, statusLine("Daemon", running, colorize))
				fmt.Fprintln(stdout, statusLine("DHL", cfg.DHL.Enabled, colorize))
				fmt.Fprintln(stdout, statusLine("PostNord", cfg.PostNord.Enabled, colorize))
				fmt.Fprintln(stdout, statusLine("SMTP", cfg.SMTP.Enabled, colorize))
				fmt.Fprintf(stdout, "Watch dir: %s\n", cfg.Paths.WatchDir)
				fmt.Fprintf(stdout, "Journal:   %s\n", journal.DefaultPath(cfg.Paths.LogDir))
				fmt.Fprintln(stdout)

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := statusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Journal is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, 1))
				return nil
			})
		},
	}
}

func statusRows(stats map[journal.Status]int) [][]string {
	rows := make([][]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		count, ok := stats[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}

func statusLine(label string, active bool, colorize bool) string {
	state := "inactive"
	if active {
		state = "active"
	}
	if colorize {
		if active {
			state = text.FgGreen.Sprint(state)
		} else {
			state = text.FgYellow.Sprint(state)
		}
	}
	return fmt.Sprintf("%-9s %s", label+":", state)
}

// daemonRunning probes the daemon lock file. If the lock can be taken
// the daemon is not running.
func daemonRunning(cfg *config.Config) bool {
	lockPath := filepath.Join(cfg.Paths.LogDir, "garpconnectd.lock")
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}
