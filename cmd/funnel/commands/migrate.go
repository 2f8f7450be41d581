package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youngcan/wyckoff-funnel/internal/store"
	"github.com/youngcan/wyckoff-funnel/pkg/config"
	"github.com/youngcan/wyckoff-funnel/pkg/database"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Creates the screening_results table if it does not exist.
Requires DATABASE_URL.

Example:
  go run ./cmd/funnel migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("DATABASE_URL is not configured")
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if _, err := db.Pool.Exec(context.Background(), store.Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	log.Info("Schema applied")
	fmt.Println("✅ Schema applied")
	return nil
}
