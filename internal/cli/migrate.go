package cli

import (
	"fmt"

	"teamflow/backend/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		pool, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer pool.Close()

		if err := database.Migrate(pool.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema up to date", "driver", cfg.Database.Driver)
		return nil
	},
}
