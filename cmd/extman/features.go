// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/extman/internal/issue"
	"github.com/invowk/extman/pkg/extension"
)

type closureKind int

const (
	closureDependencies closureKind = iota
	closureDependents
)

func newFeaturesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "features [feature...]",
		Short: "List features in load order",
		Long: `List features in load order.

With feature ids, only those features and everything they depend on are
listed, still in load order. Unknown ids are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				future := s.manager.LoadFeaturesAsync(cmd.Context())
				if len(args) > 0 {
					future = s.manager.LoadFeaturesByIDAsync(cmd.Context(), args)
				}
				features, err := future.Get(cmd.Context())
				if err != nil {
					return err
				}
				return writeFeatures(app, features)
			})
		},
	}
}

func newClosureCommand(app *App, kind closureKind) *cobra.Command {
	use, short := "deps <feature>", "Show a feature and everything it depends on"
	if kind == closureDependents {
		use, short = "dependents <feature>", "Show a feature and everything that depends on it"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return app.withSession(ctx, func(s *session) error {
				if _, ok, err := s.manager.GetFeature(ctx, args[0]); err != nil {
					return err
				} else if !ok {
					return notFoundError("feature", args[0], issue.FeatureNotFoundId,
						"Run 'extman features' to list loaded features")
				}

				var (
					features []*extension.Feature
					err      error
				)
				if kind == closureDependents {
					features, err = s.manager.GetDependentFeatures(ctx, args[0])
				} else {
					features, err = s.manager.GetFeatureDependencies(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return writeFeatures(app, features)
			})
		},
	}
}

func writeFeatures(app *App, features []*extension.Feature) error {
	if app.opts.jsonOutput {
		return writeJSON(app.stdout, newFeatureViews(features))
	}
	if len(features) == 0 {
		_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No features found."))
		return nil
	}
	writeFeatureTable(app.stdout, features)
	return nil
}
