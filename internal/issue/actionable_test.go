// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "initialize extensions"},
			expected: "failed to initialize extensions",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "parse extension manifest",
				Resource:  "blog.extmod/extension.cue",
			},
			expected: "failed to parse extension manifest: blog.extmod/extension.cue",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "parse extension manifest",
				Resource:  "blog.extmod/extension.cue",
				Cause:     errors.New("features[0].id: incomplete value"),
			},
			expected: "failed to parse extension manifest: blog.extmod/extension.cue: features[0].id: incomplete value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dependency cycle")
	err := &ActionableError{Operation: "order features", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions are listed",
			err: &ActionableError{
				Operation:   "initialize extensions",
				Suggestions: []string{"Run 'extman validate'", "Check the search paths"},
			},
			contains: []string{
				"failed to initialize extensions",
				"• Run 'extman validate'",
				"• Check the search paths",
			},
		},
		{
			name: "error chain in verbose mode",
			err: &ActionableError{
				Operation: "load configuration",
				Cause:     errors.Join(errors.New("syntax error")),
			},
			verbose:  true,
			contains: []string{"Error chain:", "1. syntax error"},
		},
		{
			name: "no error chain in non-verbose mode",
			err: &ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error"),
			},
			contains: []string{"failed to load configuration: syntax error"},
			excludes: []string{"Error chain:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() = %q, should contain %q", got, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() = %q, should not contain %q", got, s)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewErrorContext().
		WithOperation("order features").
		WithResource("Acme.Blog").
		WithSuggestion("first").
		WithSuggestions("second", "third").
		WithIssue(DependencyCycleId).
		Wrap(cause).
		Build()

	if err.Operation != "order features" || err.Resource != "Acme.Blog" {
		t.Errorf("unexpected operation/resource: %+v", err)
	}
	if len(err.Suggestions) != 3 || !err.HasSuggestions() {
		t.Errorf("Suggestions = %v, want 3", err.Suggestions)
	}
	if err.Issue != DependencyCycleId {
		t.Errorf("Issue = %d, want %d", err.Issue, DependencyCycleId)
	}
	if !errors.Is(err, cause) {
		t.Error("built error should wrap the cause")
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should return a nil error")
	}

	var ae *ActionableError
	err := NewErrorContext().WithOperation("load configuration").BuildError()
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() should return *ActionableError, got %T", err)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}

	cause := errors.New("missing")
	err := WrapWithContext(cause, "show extension", "Acme.Blog")
	if err.Error() != "failed to show extension: Acme.Blog: missing" {
		t.Errorf("Error() = %q", err.Error())
	}
}
