// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/invowk/extman/internal/dag"
	"github.com/invowk/extman/internal/issue"
	"github.com/invowk/extman/pkg/extension"
	"github.com/invowk/extman/pkg/extmanager"
)

// wrapInitError attaches remediation hints to a fatal initialization error.
func wrapInitError(err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("initialize extensions").
		Wrap(err)

	var cycle *dag.CycleError
	switch {
	case errors.As(err, &cycle):
		ctx.WithIssue(issue.DependencyCycleId).
			WithSuggestion(fmt.Sprintf("Break the cycle %v", cycle.Cycle))
	case errors.Is(err, extension.ErrDuplicateFeature):
		ctx.WithIssue(issue.DuplicateFeatureId).
			WithSuggestion("Rename one of the features so ids are unique")
	case errors.Is(err, extension.ErrDuplicateExtension):
		ctx.WithIssue(issue.DuplicateExtensionId).
			WithSuggestion("Remove the duplicated extension directory")
	case errors.Is(err, extmanager.ErrInvalidModuleName):
		ctx.WithIssue(issue.ManifestParseErrorId).
			WithSuggestion("Set a valid id in the extension manifest")
	default:
		ctx.WithSuggestion("Run 'extman validate --verbose' for details")
	}

	return ctx.BuildError()
}

func notFoundError(kind, id string, issueID issue.Id, hint string) error {
	return &ExitError{
		Code: exitCodeNotFound,
		Err: issue.NewErrorContext().
			WithOperation("find "+kind).
			WithResource(id).
			WithIssue(issueID).
			WithSuggestion(hint).
			Wrap(fmt.Errorf("%s %q is not loaded", kind, id)).
			BuildError(),
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// issueFor returns the catalog page attached to err, if any.
func issueFor(err error) *issue.Issue {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return issue.Get(ae.Issue)
	}
	return nil
}

// issueStyle picks the glamour style for catalog pages.
func issueStyle() string {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return "notty"
	}
	return "dark"
}

// handleError is the fang error handler: it prints the formatted error
// followed by the matching catalog page.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	_, _ = fmt.Fprintln(w, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, a.opts.verbose))

	if page := issueFor(err); page != nil {
		rendered, renderErr := page.Render(issueStyle())
		if renderErr != nil {
			return
		}
		_, _ = fmt.Fprint(w, rendered)
	}
}
