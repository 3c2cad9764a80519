package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and the daily scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app Application, e *env) error {
				e.logger.Info("serving",
					zap.Int("port", e.cfg.Server.Port),
					zap.String("schedule", e.cfg.Scheduler.Spec),
				)
				return app.Run(ctx)
			})
		},
	}
}
