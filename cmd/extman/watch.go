// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/extman/internal/discovery"
	"github.com/invowk/extman/internal/watch"
)

type watchOptions struct {
	debounce    time.Duration
	clearScreen bool
}

func newWatchCommand(app *App) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate whenever an extension manifest changes",
		Long: `Validate once, then watch the search paths and includes and validate
again after every change to an extension directory or manifest.

Each run builds a fresh manager, so the report always reflects the files on
disk. Directories are resolved once at startup; restart after editing the
search paths in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", watch.DefaultDebounce, "quiet period before re-validating")
	cmd.Flags().BoolVar(&opts.clearScreen, "clear", false, "clear the terminal before each report")

	return cmd
}

func runWatch(ctx context.Context, app *App, opts watchOptions) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(app.stderr, loaded.Config.Log)

	revalidate := func(ctx context.Context) error {
		if opts.clearScreen {
			_, _ = fmt.Fprint(app.stdout, "\033[2J\033[H")
		}
		err := runValidate(ctx, app)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			// Invalid trees are the expected state while editing.
			if exitErr.Err != nil && !app.opts.jsonOutput {
				_, _ = fmt.Fprintln(app.stdout, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(exitErr.Err, app.opts.verbose))
			}
			return nil
		}
		return err
	}

	if err := revalidate(ctx); err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Roots:    discovery.New(loaded.Config).Roots(),
		Debounce: opts.debounce,
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("extensions changed", "paths", changed)
			return revalidate(ctx)
		},
	})
	if err != nil {
		return fmt.Errorf("watching extensions: %w", err)
	}

	_, _ = fmt.Fprintf(app.stderr, "watching %d director(ies), press Ctrl+C to stop\n", len(w.Roots()))
	return w.Run(ctx)
}
