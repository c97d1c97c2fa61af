package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Origin-Inc/e-invoicing-backend/config"
	"github.com/Origin-Inc/e-invoicing-backend/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "e-invoicing",
	Short: "E-invoicing backend - clients, invoices and payments",
	Long: `E-invoicing backend keeps a ledger of clients, the invoices issued to them
and the payments recorded against those invoices.

Configuration is read from the environment, optionally seeded from a .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and installs the global logger for a command run.
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Setup(cfg.Log()); err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return cfg, nil
}
