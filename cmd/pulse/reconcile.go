package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/pulse/internal/reconcile"
)

func reconcileCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a reconciliation pass against the database",
		Long: `Recompute every cluster counter and term table from stored results and
print the pass report as JSON. With --pending only clusters queued by this
process are checked, which is useful after a replay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domain, err := connect()
			if err != nil {
				return err
			}

			var rep *reconcile.Report
			if pending {
				rep, err = domain.Reconciler.RunPending(cmd.Context())
			} else {
				rep, err = domain.Reconciler.Run(cmd.Context())
			}
			if err != nil {
				return err
			}

			return printJSON(rep)
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only reconcile clusters queued for repair")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
