package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexflow/pumpselect/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pumpselect",
	Short: "Centrifugal pump selection engine",
	Long:  "Evaluates a pump catalog against a hydraulic duty point: curve interpolation, affinity-law trim and speed projection, weighted scoring, ranked output with a persisted decision trace.",
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
