package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	pgstore "github.com/gohgeo-lang/back-auto-review-insight/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies the embedded Postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if e.cfg.DB.DSN == "" {
				return errors.New("db.dsn is required")
			}
			if err := pgstore.Migrate(e.cfg.DB.DSN); err != nil {
				return err
			}
			e.logger.Info("database migrations applied")
			return nil
		},
	}
}
