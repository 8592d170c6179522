// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/extman/internal/config"
)

// newConfigCommand creates the `extman config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage extman configuration",
		Long: `Manage extman configuration.

Configuration is stored in:
  - Linux: ~/.config/extman/config.cue
  - macOS: ~/Library/Application Support/extman/config.cue
  - Windows: %APPDATA%\extman\config.cue

EXTMAN_* environment variables override file values (EXTMAN_LOG_LEVEL=debug).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if app.opts.jsonOutput {
				return writeJSON(app.stdout, loaded.Config)
			}

			source := SubtitleStyle.Render("(using defaults)")
			if loaded.Path != "" {
				source = loaded.Path
			}
			_, _ = fmt.Fprintf(app.stdout, "%s %s\n\n", SubtitleStyle.Render("Config file:"), source)
			_, _ = fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.CreateDefaultConfig(); err != nil {
				return err
			}
			path, err := configFilePath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func configFilePath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt), nil
}
