package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/pipeline"
)

var validateSourceCmd = &cobra.Command{
	Use:   "validate-source",
	Short: "Validate extracted records against the source schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) (pipeline.StageSummary, error) {
			return p.ValidateSource(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(validateSourceCmd)
}
