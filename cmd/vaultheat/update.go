package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <path>...",
		Short: "Record changes to files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			for _, arg := range args {
				rel, err := a.relPath(arg)
				if err != nil {
					return err
				}
				if err := a.tracker.NotifyFileChanged(cmd.Context(), rel); err != nil {
					return fmt.Errorf("failed to update %s: %w", rel, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", rel)
			}
			return nil
		},
	}

	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <path>...",
		Short: "Forget the checkpoints of removed files",
		Long:  "Remove drops the checkpoint of each path. Past activity is kept.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			for _, arg := range args {
				rel, err := a.relPath(arg)
				if err != nil {
					return err
				}
				if err := a.tracker.NotifyFileRemoved(cmd.Context(), rel); err != nil {
					return fmt.Errorf("failed to remove %s: %w", rel, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", rel)
			}
			return nil
		},
	}

	return cmd
}
