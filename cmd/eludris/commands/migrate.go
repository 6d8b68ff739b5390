package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded schema migrations to the configured database.

The servers also run migrations on startup when database.auto_migrate is
enabled; this command exists for operators who migrate as a separate deploy
step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}); err != nil {
			return err
		}
		if err := store.RunMigrations(cmd.Context(), cfg.Database.URL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migrations applied")
		return nil
	},
}
