package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform validated records into the target schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) (pipeline.StageSummary, error) {
			return p.Transform(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
}
