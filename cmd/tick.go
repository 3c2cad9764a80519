package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Runs one scheduler pass over every auto-crawl store and exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app Application, e *env) error {
				defer func() {
					if err := app.Close(context.WithoutCancel(ctx)); err != nil {
						e.logger.Warn("failed to close application", zap.Error(err))
					}
				}()
				summary := app.Tick(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "stores=%d ok=%d skipped=%d failed=%d added=%d debited=%d lease_missed=%t\n",
					summary.Stores, summary.OK, summary.Skipped, summary.Failed,
					summary.Added, summary.Debited, summary.LeaseMissed)
				if summary.Err != nil {
					return fmt.Errorf("tick: %w", summary.Err)
				}
				return nil
			})
		},
	}
}
