// SPDX-License-Identifier: MPL-2.0

// Package discovery finds extension directories on the filesystem.
//
// An extension directory is named <name>.extmod and holds one manifest
// (extension.cue, extension.toml, extension.yaml or extension.yml). Discovery
// scans the immediate subdirectories of every search path, then the explicit
// includes from the configuration. It implements extension.DiagnosticSource, so
// skipped directories are reported to the manager instead of failing the load.
package discovery
