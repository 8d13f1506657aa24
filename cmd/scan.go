package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/dealscout/internal/model"
)

var scanType string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot deal scan over watchlists and categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Orchestrator.Run(ctx, model.ScanType(scanType))
		if err != nil && run == nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanType, "type", "all", "scan type (warehouse, lightning, coupon, regular, all)")
	rootCmd.AddCommand(scanCmd)
}
