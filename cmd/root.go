package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xia",
	Short: "Batch metadata-integration pipeline",
	Long:  "Extracts metadata from a source repository, tracks record lifecycles in a versioned ledger, validates and transforms records, and transmits accepted records to the downstream index service.",
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
