package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migrations",
	Long:  `Apply the embedded session-api schema migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateUpCmd.Flags().String("dsn", "", "Postgres DSN (defaults to DB_POSTGRESQL_WRITE_DSN)")
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		config.LoadEnvFiles()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dsn = cfg.DBPostgresqlWriteDSN
	}
	if dsn == "" {
		return fmt.Errorf("no DSN: pass --dsn or set DB_POSTGRESQL_WRITE_DSN")
	}

	db, err := database.Connect(database.Config{WriteDSN: dsn})
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
