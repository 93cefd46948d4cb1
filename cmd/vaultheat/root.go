package main

import (
	"github.com/spf13/cobra"
)

// Persistent flags shared by every command.
var (
	configPath string
	vaultPath  string
	backend    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "vaultheat",
	Short:         "vaultheat - A calendar heatmap of vault activity",
	Long:          "vaultheat tracks how much the files of a markdown vault change each day and renders the result as a calendar heatmap.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.Version = version

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/vaultheat/config.yaml)")
	flags.StringVar(&vaultPath, "vault", "", "Vault directory (overrides vault.path)")
	flags.StringVar(&backend, "backend", "", "Storage backend: file or sqlite (overrides storage.backend)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMCPCmd())
}
