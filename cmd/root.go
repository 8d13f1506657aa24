package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dealscout",
	Short: "Deal aggregation and matching engine for resale sellers",
	Long:  "Aggregates product listings across marketplaces through tiered source fallback, detects warehouse/lightning/coupon deals, and alerts users whose saved filters match.",
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
