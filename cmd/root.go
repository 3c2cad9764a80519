package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/config"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/logging"
	"github.com/gohgeo-lang/back-auto-review-insight/internal/server"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what every subcommand needs before it starts.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// buildApp is the application factory. Tests replace it.
var buildApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Application, error) {
	return server.Build(ctx, cfg, logger)
}

// newRootCmd creates the root command and registers the subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "review-crawler",
		Short: "Collects visitor reviews of registered stores.",
		Long: `review-crawler drives a headless browser through a store's review list,
stores new reviews for the owning tenant and requests reports downstream.
It runs as an HTTP service with a daily scheduler, or as one-off commands.`,
		SilenceUsage: true,

		// Loads configuration and the logger before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars prefixed REVIEWS_ override it)")

	cmd.AddCommand(newServeCmd(), newCrawlCmd(), newTickCmd(), newMigrateCmd())
	return cmd
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}

// withApp builds the application, hands it to fn and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app Application, e *env) error) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	app, err := buildApp(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	return fn(cmd.Context(), app, e)
}
