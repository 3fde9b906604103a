package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adlnet/edlm-portal-xia-jobs/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger counts and transmission health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate ledger")
		}

		snapshot, err := monitoring.NewCollector(store).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "collect status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			return eris.Wrap(err, "encode status")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
