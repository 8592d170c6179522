// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/invowk/extman/pkg/extension"
)

// writeExtension creates dir/<name>.extmod with one manifest file and returns its path.
// An empty manifestName creates a directory without a manifest.
func writeExtension(t *testing.T, dir, name, manifestName, content string) string {
	t.Helper()

	extDir := filepath.Join(dir, name+ExtensionSuffix)
	if err := os.MkdirAll(extDir, 0o755); err != nil {
		t.Fatalf("failed to create extension dir: %v", err)
	}
	if manifestName != "" {
		if err := os.WriteFile(filepath.Join(extDir, manifestName), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", manifestName, err)
		}
	}
	return extDir
}

func moduleNames(modules []extension.Module) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name
	}
	return names
}

func diagnosticCodes(diags []extension.Diagnostic) []extension.DiagnosticCode {
	codes := make([]extension.DiagnosticCode, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	return codes
}
