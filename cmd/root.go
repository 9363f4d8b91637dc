package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fitbit-agent",
	Short: "Fitbit weekly report extraction agent",
	Long:  "Drives Gmail through a browser to find Fitbit weekly progress report emails, extracts the metrics with Gemini, and stores them as normalized weekly reports.",
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
