package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Origin-Inc/e-invoicing-backend/config"
	"github.com/Origin-Inc/e-invoicing-backend/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the clients, invoices and payments tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	log := logger.WithComponent("migrate")

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}

	log.Info().Msg("Database migrated")
	return nil
}
