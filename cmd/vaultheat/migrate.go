package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert legacy data to the current schema",
		Long: `Migrate reads a legacy data.json (schema 1.0.3 or 1.0.4), merges it with
any current data and writes the result in the current schema. The legacy
file is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.data.MigrateIfNeeded(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Migrated {
				fmt.Fprintln(out, "Nothing to migrate")
				return nil
			}
			fmt.Fprintf(out, "Migrated from %s: %d checkpoints, %d days\n",
				result.FromVersion, result.Checkpoints, result.Days)
			return nil
		},
	}

	return cmd
}
