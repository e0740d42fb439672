package main

import (
	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunMigrations(cfg.Database); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("Migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RollbackMigrations(cfg.Database); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("Migrations rolled back")
			return nil
		},
	})

	return cmd
}
