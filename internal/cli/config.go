package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/config"
)

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tidysupervise configuration",
		Long: `Manage tidysupervise configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TIDYSUPERVISE_*, also read from .env)
3. Config file (./tidysupervise.yaml or ~/.tidysupervise/config.yaml)
4. Defaults`,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long:  `Write the default configuration to path (default ~/.tidysupervise/config.yaml).`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := defaultConfigPath(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			header := []byte("# tidysupervise configuration\n" +
				"# Overridden by TIDYSUPERVISE_* environment variables and CLI flags.\n\n")
			if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
				return fmt.Errorf("error writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func defaultConfigPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error finding home directory: %w", err)
	}
	return filepath.Join(home, ".tidysupervise", "config.yaml"), nil
}
