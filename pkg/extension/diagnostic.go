// SPDX-License-Identifier: MPL-2.0

package extension

import (
	"context"
	"errors"
	"fmt"
)

const (
	// SeverityWarning indicates a recoverable warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal error: something was skipped.
	SeverityError Severity = "error"

	// CodeManifestMissing reports a module without a manifest. The module is skipped.
	CodeManifestMissing DiagnosticCode = "manifest_missing"
	// CodeManifestParseSkipped reports a manifest that failed to parse. The module is skipped.
	CodeManifestParseSkipped DiagnosticCode = "manifest_parse_skipped"
	// CodeUnknownDependency reports a dependency id that matches no loaded feature.
	CodeUnknownDependency DiagnosticCode = "unknown_dependency"
	// CodeExtensionWithoutFeatures reports an extension whose provider returned no features.
	CodeExtensionWithoutFeatures DiagnosticCode = "extension_without_features"
	// CodeSearchPathInvalid reports a configured search path that is not a directory.
	CodeSearchPathInvalid DiagnosticCode = "search_path_invalid"
	// CodeSearchPathScanFailed reports a search path that could not be listed.
	CodeSearchPathScanFailed DiagnosticCode = "search_path_scan_failed"
	// CodeIncludeNotExtension reports an include that is not an extension directory.
	CodeIncludeNotExtension DiagnosticCode = "include_not_extension"
)

var (
	// ErrInvalidSeverity is the sentinel wrapped by InvalidSeverityError.
	ErrInvalidSeverity = errors.New("invalid diagnostic severity")
	// ErrInvalidDiagnosticCode is the sentinel wrapped by InvalidDiagnosticCodeError.
	ErrInvalidDiagnosticCode = errors.New("invalid diagnostic code")
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// DiagnosticCode is a machine-readable diagnostic identifier.
	DiagnosticCode string

	// Diagnostic is a structured, non-fatal finding returned to callers
	// (rather than written to stderr) so the CLI controls rendering.
	Diagnostic struct {
		// Severity is the diagnostic level (warning or error).
		Severity Severity `json:"severity"`
		// Code is a machine-readable identifier (e.g., "unknown_dependency").
		Code DiagnosticCode `json:"code"`
		// Message is the human-readable description.
		Message string `json:"message"`
		// Path is the file path associated with this diagnostic (optional).
		Path string `json:"path,omitempty"`
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error `json:"-"`
	}

	// InvalidSeverityError is returned when a Severity value is not recognized.
	InvalidSeverityError struct {
		Value Severity
	}

	// InvalidDiagnosticCodeError is returned when a DiagnosticCode value is not recognized.
	InvalidDiagnosticCodeError struct {
		Value DiagnosticCode
	}

	// DiagnosticSource is a ModuleSource that also reports the non-fatal
	// findings of enumeration. The manager prefers DiscoverAll when available.
	DiagnosticSource interface {
		ModuleSource
		DiscoverAll(ctx context.Context) ([]Module, []Diagnostic, error)
	}
)

// NewDiagnostic creates a diagnostic without path or cause.
func NewDiagnostic(severity Severity, code DiagnosticCode, message string) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message}
}

// NewDiagnosticWithPath creates a diagnostic bound to a file path.
func NewDiagnosticWithPath(severity Severity, code DiagnosticCode, message, path string) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message, Path: path}
}

// NewDiagnosticWithCause creates a diagnostic carrying its underlying error.
func NewDiagnosticWithCause(severity Severity, code DiagnosticCode, message, path string, cause error) Diagnostic {
	return Diagnostic{Severity: severity, Code: code, Message: message, Path: path, Cause: cause}
}

// String renders "severity code: message (path)".
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	if d.Path != "" {
		s += " (" + d.Path + ")"
	}
	return s
}

// IsValid returns whether the Severity is a recognized value.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityWarning, SeverityError:
		return true, nil
	default:
		return false, []error{&InvalidSeverityError{Value: s}}
	}
}

// String returns the code as a string.
func (c DiagnosticCode) String() string { return string(c) }

// IsValid returns whether the DiagnosticCode is a recognized value.
func (c DiagnosticCode) IsValid() (bool, []error) {
	switch c {
	case CodeManifestMissing, CodeManifestParseSkipped, CodeUnknownDependency,
		CodeExtensionWithoutFeatures, CodeSearchPathInvalid, CodeSearchPathScanFailed,
		CodeIncludeNotExtension:
		return true, nil
	default:
		return false, []error{&InvalidDiagnosticCodeError{Value: c}}
	}
}

// Error implements the error interface.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid diagnostic severity %q (valid: warning, error)", e.Value)
}

// Unwrap returns ErrInvalidSeverity for errors.Is() compatibility.
func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// Error implements the error interface.
func (e *InvalidDiagnosticCodeError) Error() string {
	return fmt.Sprintf("invalid diagnostic code %q", e.Value)
}

// Unwrap returns ErrInvalidDiagnosticCode for errors.Is() compatibility.
func (e *InvalidDiagnosticCodeError) Unwrap() error { return ErrInvalidDiagnosticCode }
