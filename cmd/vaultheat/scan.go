package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Checkpoint every vault file",
		Long: `Scan walks the vault and records a checkpoint for every tracked file.
On the very first scan existing content is not counted as activity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.tracker.RunInitialScan(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d files: %d updated, %d unchanged, %d failed\n",
				result.Files, result.Updated, result.Unchanged, result.Failed)
			if result.FirstTime {
				fmt.Fprintln(out, "First scan: checkpoints recorded, no activity counted")
			}
			return nil
		},
	}

	return cmd
}
