package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending PostgreSQL migrations. The server also migrates on startup,
this command is for deployments that run migrations as a separate step.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Only list applied migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if mustGetBool(cmd, "status") {
		applied, err := pool.MigrationsApplied(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d migrations applied\n", len(applied))
		for _, name := range applied {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	for _, name := range applied {
		fmt.Printf("Applied %s\n", name)
	}
	return nil
}
