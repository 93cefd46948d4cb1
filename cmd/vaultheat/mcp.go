package main

import (
	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server exposing read-only heatmap tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			settings, err := a.settings(cmd)
			if err != nil {
				return err
			}

			server := mcp.NewServer(a.tracker, settings, version, a.logger)
			return server.Run(cmd.Context())
		},
	}

	return cmd
}
