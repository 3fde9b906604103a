package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract, validate, transform, load",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, store, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate ledger")
		}

		summary, runErr := p.Run(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "encode summary")
		}

		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
