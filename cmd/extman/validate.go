// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/invowk/extman/pkg/extension"
)

type validateReport struct {
	Valid       bool                   `json:"valid"`
	Extensions  int                    `json:"extensions"`
	Features    int                    `json:"features"`
	Diagnostics []extension.Diagnostic `json:"diagnostics"`
	Error       string                 `json:"error,omitempty"`
}

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every manifest and feature dependency",
		Long: `Discover and order every extension, then report what was skipped.

Exits with status 2 when initialization fails (dependency cycle, duplicate
ids) or when any diagnostic has error severity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), app)
		},
	}
}

func runValidate(ctx context.Context, app *App) error {
	s, err := app.newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	if initErr := s.initialize(ctx); initErr != nil {
		if app.opts.jsonOutput {
			if err := writeJSON(app.stdout, validateReport{Diagnostics: []extension.Diagnostic{}, Error: initErr.Error()}); err != nil {
				return err
			}
		}
		return &ExitError{Code: exitCodeInvalid, Err: initErr}
	}

	report, err := buildValidateReport(ctx, s)
	if err != nil {
		return err
	}

	if app.opts.jsonOutput {
		if err := writeJSON(app.stdout, report); err != nil {
			return err
		}
	} else {
		writeValidateReport(app.stdout, report)
	}

	if !report.Valid {
		return &ExitError{Code: exitCodeInvalid}
	}
	return nil
}

func buildValidateReport(ctx context.Context, s *session) (validateReport, error) {
	exts, err := s.manager.GetExtensions(ctx)
	if err != nil {
		return validateReport{}, err
	}
	features, err := s.manager.GetFeatures(ctx)
	if err != nil {
		return validateReport{}, err
	}
	diags, err := s.manager.Diagnostics(ctx)
	if err != nil {
		return validateReport{}, err
	}
	if diags == nil {
		diags = []extension.Diagnostic{}
	}

	report := validateReport{
		Valid:       true,
		Extensions:  len(exts),
		Features:    len(features),
		Diagnostics: diags,
	}
	for _, d := range diags {
		if d.Severity == extension.SeverityError {
			report.Valid = false
		}
	}
	return report, nil
}

func writeValidateReport(w io.Writer, report validateReport) {
	for _, d := range report.Diagnostics {
		prefix := WarningStyle.Render("warning")
		if d.Severity == extension.SeverityError {
			prefix = ErrorStyle.Render("error")
		}
		if d.Path != "" {
			_, _ = fmt.Fprintf(w, "%s [%s]: %s (%s)\n", prefix, d.Code, d.Message, d.Path)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s [%s]: %s\n", prefix, d.Code, d.Message)
	}

	summary := fmt.Sprintf("%d extension(s), %d feature(s)", report.Extensions, report.Features)
	if report.Valid {
		_, _ = fmt.Fprintln(w, SuccessStyle.Render("✓ valid: ")+summary)
		return
	}
	_, _ = fmt.Fprintln(w, ErrorStyle.Render("✗ invalid: ")+summary)
}
