package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract source metadata into the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) (pipeline.StageSummary, error) {
			return p.Extract(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
