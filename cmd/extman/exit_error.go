// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

const (
	exitCodeOK = 0
	// exitCodeError covers configuration, discovery and usage failures.
	exitCodeError = 1
	// exitCodeInvalid reports that validate found errors.
	exitCodeInvalid = 2
	// exitCodeNotFound reports an unknown extension or feature id.
	exitCodeNotFound = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// A nil Err means the command already reported the failure.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
