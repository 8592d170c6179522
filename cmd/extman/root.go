// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for extman.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with its status code.
// This is called by main.main().
func Execute() {
	os.Exit(Run())
}

// Run executes the CLI with os.Args and returns the process exit code.
func Run() int {
	return NewApp(Dependencies{}).Run(context.Background(), os.Args[1:])
}

// Run executes the command tree with args and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(a.handleError),
	)
	if err == nil {
		return exitCodeOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitCodeError
}

func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extman",
		Short: "Discover extensions and resolve their feature load order",
		Long: TitleStyle.Render("extman") + SubtitleStyle.Render(" - extension and feature dependency manager") + `

extman scans search paths for *.extmod extension directories, reads their
manifests (extension.cue, extension.toml or extension.yaml) and orders every
declared feature so that dependencies load first.

` + SubtitleStyle.Render("Examples:") + `
  extman extensions                 List extensions in load order
  extman features                   List every feature in load order
  extman deps Acme.Blog.Comments    Show what a feature needs
  extman dependents Acme.Blog       Show what breaks without a feature
  extman validate                   Check every manifest and dependency
  extman watch                      Re-validate on every manifest change`,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.opts.configPath, "config", "", "config file (default is $HOME/.config/extman/config.cue)")
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&app.opts.jsonOutput, "json", false, "write machine-readable JSON")
	flags.StringArrayVarP(&app.opts.searchPaths, "search-path", "p", nil, "additional directory to scan for *.extmod extensions (repeatable)")

	rootCmd.AddCommand(
		newExtensionsCommand(app),
		newShowCommand(app),
		newFeaturesCommand(app),
		newClosureCommand(app, closureDependencies),
		newClosureCommand(app, closureDependents),
		newValidateCommand(app),
		newWatchCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}
