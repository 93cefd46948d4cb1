package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change heatmap settings",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := config.LoadSettings(cmd.Context(), a.store)
			if err != nil {
				return err
			}

			keys := config.SettingKeys()
			if len(args) == 1 {
				keys = args
			}
			for _, key := range keys {
				value, err := s.Get(key)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					fmt.Fprintln(cmd.OutOrStdout(), value)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, value)
				}
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Long: `Change a setting. Keys:
  metric          fileSize or wordCount
  year            "Past year" or a four digit year
  updateInterval  minutes between watch flushes: 1, 5, 10, 30 or 60`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := config.LoadSettings(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := s.Validate(kindNames(a.registry.Kinds())); err != nil {
				return err
			}
			if err := config.SaveSettings(cmd.Context(), a.store, s); err != nil {
				return err
			}

			a.logger.Info("setting changed", "key", args[0], "value", args[1])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file and data directory locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			file := configPath
			if file == "" {
				file = config.GetConfigFile()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config:    %s\n", file)
			fmt.Fprintf(cmd.OutOrStdout(), "Data Root: %s\n", config.GetDataDir())
			if cfg.Storage.Dir != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Data Dir:  %s\n", cfg.Storage.Dir)
			}
			return nil
		},
	}
}
