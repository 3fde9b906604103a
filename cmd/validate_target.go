package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

var validateTargetCmd = &cobra.Command{
	Use:   "validate-target",
	Short: "Validate transformed records against the target schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) (pipeline.StageSummary, error) {
			return p.ValidateTarget(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(validateTargetCmd)
}
