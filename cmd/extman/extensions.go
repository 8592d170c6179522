// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invowk/extman/internal/issue"
	"github.com/invowk/extman/pkg/extension"
)

func newExtensionsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "extensions",
		Aliases: []string{"ls"},
		Short:   "List extensions in load order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				exts, err := s.manager.GetExtensions(cmd.Context())
				if err != nil {
					return err
				}

				if app.opts.jsonOutput {
					views := make([]extensionView, len(exts))
					for i, ext := range exts {
						views[i] = newExtensionView(ext)
					}
					return writeJSON(app.stdout, views)
				}

				if len(exts) == 0 {
					_, _ = fmt.Fprintln(app.stdout, SubtitleStyle.Render("No extensions found."))
					return nil
				}
				rows := make([][]string, len(exts))
				for i, ext := range exts {
					rows[i] = []string{
						ext.ID,
						ext.Manifest.Name,
						ext.Manifest.Type.String(),
						strconv.Itoa(len(ext.Features)),
						ext.SubPath,
					}
				}
				_, _ = fmt.Fprintln(app.stdout, renderTable([]string{"EXTENSION", "NAME", "TYPE", "FEATURES", "PATH"}, rows))
				return nil
			})
		},
	}
}

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <extension>",
		Short: "Show an extension and its features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				ext, err := s.manager.GetExtension(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ext.Found {
					return notFoundError("extension", ext.ID, issue.ExtensionNotFoundId,
						"Run 'extman extensions' to list loaded extensions")
				}

				if app.opts.jsonOutput {
					return writeJSON(app.stdout, newExtensionView(ext))
				}
				writeExtension(app, ext)
				return nil
			})
		},
	}
}

func writeExtension(app *App, ext *extension.Extension) {
	w := app.stdout
	_, _ = fmt.Fprintln(w, TitleStyle.Render(ext.ID))
	field := func(name, value string) {
		if value != "" {
			_, _ = fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render(name+":"), value)
		}
	}
	field("Name", ext.Manifest.Name)
	field("Type", ext.Manifest.Type.String())
	field("Version", ext.Manifest.Version)
	field("Author", ext.Manifest.Author)
	field("Website", ext.Manifest.Website)
	field("Description", ext.Manifest.Description)
	field("Path", ext.SubPath)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, SubtitleStyle.Render("Features:"))
	for _, f := range ext.Features {
		_, _ = fmt.Fprintf(w, "  • %s\n", IDStyle.Render(f.ID))
	}
}
