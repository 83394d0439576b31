package main

import (
	"fmt"

	"kart-checkout/internal/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.PersistentFlags().String("source", "", "migrations source URL (default MIGRATIONS_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *database.Migrator) error { return m.Up() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *database.Migrator) error { return m.Down() })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*database.Migrator) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	source, _ := cmd.Flags().GetString("source")
	if source == "" {
		source = e.cfg.Database.MigrationsPath
	}

	m, err := database.NewMigrator(source, e.cfg.Database.ConnectionString(), e.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to close migrator")
		}
	}()
	return fn(m)
}
