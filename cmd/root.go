package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/broker-crm/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "broker-crm",
	Short: "Lending deal ingestion and pipeline CRM",
	Long:  "Pulls loan applications from Cognito Forms and the Gmail notification inbox, normalizes and scores them, and tracks them as deals through the sales pipeline.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
