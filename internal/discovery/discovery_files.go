// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/extman/pkg/extension"
)

// DiscoverAll implements extension.DiagnosticSource. Search paths are scanned
// in order, each one alphabetically, followed by the configured includes. A
// directory reached twice is only loaded the first time.
func (d *Discovery) DiscoverAll(ctx context.Context) ([]extension.Module, []extension.Diagnostic, error) {
	var (
		modules     []extension.Module
		diagnostics []extension.Diagnostic
	)
	seen := make(map[string]bool)

	add := func(root, dir string) {
		if seen[dir] {
			return
		}
		seen[dir] = true
		if m, diag, ok := d.loadModule(root, dir); ok {
			modules = append(modules, m)
		} else {
			diagnostics = append(diagnostics, diag)
		}
	}

	for _, sp := range d.SearchPaths() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		dirs, diags := d.scanSearchPath(sp)
		diagnostics = append(diagnostics, diags...)
		for _, dir := range dirs {
			add(dir.root, dir.path)
		}
	}

	if d.cfg != nil {
		for _, entry := range d.cfg.Includes {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			dir, diag, ok := d.resolveInclude(string(entry.Path))
			if !ok {
				diagnostics = append(diagnostics, diag)
				continue
			}
			add(filepath.Dir(dir), dir)
		}
	}

	d.logger.Debug("extension discovery finished",
		"modules", len(modules), "diagnostics", len(diagnostics))
	return modules, diagnostics, nil
}

type candidate struct {
	root string
	path string
}

// scanSearchPath lists the *.extmod subdirectories of one search path.
func (d *Discovery) scanSearchPath(path string) ([]candidate, []extension.Diagnostic) {
	absDir, err := d.resolve(path)
	if err != nil {
		return nil, []extension.Diagnostic{extension.NewDiagnosticWithCause(
			extension.SeverityWarning, extension.CodeSearchPathInvalid,
			fmt.Sprintf("failed to resolve search path %q: %v", path, err), path, err)}
	}

	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		return nil, []extension.Diagnostic{extension.NewDiagnosticWithCause(
			extension.SeverityWarning, extension.CodeSearchPathInvalid,
			fmt.Sprintf("search path %s is not a directory, skipping", absDir), absDir, err)}
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, []extension.Diagnostic{extension.NewDiagnosticWithCause(
			extension.SeverityWarning, extension.CodeSearchPathScanFailed,
			fmt.Sprintf("failed to list search path %s: %v", absDir, err), absDir, err)}
	}

	var dirs []candidate
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ExtensionSuffix) {
			continue
		}
		dirs = append(dirs, candidate{root: absDir, path: filepath.Join(absDir, entry.Name())})
	}
	return dirs, nil
}

func (d *Discovery) resolveInclude(path string) (string, extension.Diagnostic, bool) {
	absDir, err := d.resolve(path)
	if err == nil {
		var info os.FileInfo
		info, err = os.Stat(absDir)
		if err == nil && info.IsDir() && strings.HasSuffix(absDir, ExtensionSuffix) {
			return absDir, extension.Diagnostic{}, true
		}
	}
	return "", extension.NewDiagnosticWithCause(
		extension.SeverityWarning, extension.CodeIncludeNotExtension,
		fmt.Sprintf("configured include is not an extension directory, skipping: %s", path),
		path, err), false
}

// loadModule reads the manifest of one extension directory. A directory
// without a manifest is still returned, with ManifestExists unset, so the
// manager can report it. ok is false when the module must be skipped.
func (d *Discovery) loadModule(root, dir string) (extension.Module, extension.Diagnostic, bool) {
	subPath, err := filepath.Rel(root, dir)
	if err != nil {
		subPath = filepath.Base(dir)
	}
	name := strings.TrimSuffix(filepath.Base(dir), ExtensionSuffix)

	manifestPath, found := extension.FindManifest(dir)
	if !found {
		d.logger.Debug("extension directory has no manifest", "path", dir)
		return extension.Module{Name: name, SubPath: subPath, Handle: dir}, extension.Diagnostic{}, true
	}

	m, err := extension.ParseManifestFile(manifestPath)
	if err != nil {
		return extension.Module{}, extension.NewDiagnosticWithCause(
			extension.SeverityError, extension.CodeManifestParseSkipped,
			fmt.Sprintf("skipping extension with invalid manifest: %v", err), manifestPath, err), false
	}

	if m.ID != "" {
		name = m.ID
	}
	if !extension.IsValidID(name) {
		return extension.Module{}, extension.NewDiagnosticWithPath(
			extension.SeverityError, extension.CodeManifestParseSkipped,
			fmt.Sprintf("skipping extension %q: directory name is not a valid identifier, set an id in the manifest", name),
			dir), false
	}

	d.logger.Debug("discovered extension", "name", name, "manifest", manifestPath)
	return extension.Module{
		Name:           name,
		SubPath:        subPath,
		ManifestPath:   manifestPath,
		ManifestExists: true,
		Manifest:       m,
		Handle:         dir,
	}, extension.Diagnostic{}, true
}
