package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"garpconnect/internal/logging"
	"garpconnect/internal/notifications"
)

func newTestEmailCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-email [recipient]",
		Short: "Send a test email to verify SMTP settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			to := cfg.SMTP.OperatorEmail
			if len(args) > 0 {
				to = strings.TrimSpace(args[0])
			}

			notifier := notifications.NewService(cfg.SMTP, logging.NewNop())
			if err := notifier.TestEmail(cmd.Context(), to); err != nil {
				return fmt.Errorf("send test email: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test email sent to %s\n", to)
			return nil
		},
	}
}
