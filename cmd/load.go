package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Transmit accepted records to the index service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) (pipeline.StageSummary, error) {
			return p.Load(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
