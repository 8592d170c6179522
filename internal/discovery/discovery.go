// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/invowk/extman/internal/config"
	"github.com/invowk/extman/pkg/extension"
)

// ExtensionSuffix is the directory suffix that marks an extension.
const ExtensionSuffix = ".extmod"

type (
	// Discovery is a filesystem extension.ModuleSource.
	Discovery struct {
		cfg         *config.Config
		baseDir     string
		searchPaths []string
		logger      *slog.Logger
	}

	// Option configures a Discovery.
	Option func(*Discovery)
)

var _ extension.DiagnosticSource = (*Discovery)(nil)

// WithBaseDir resolves relative search paths and includes against dir
// instead of the working directory.
func WithBaseDir(dir string) Option {
	return func(d *Discovery) {
		d.baseDir = dir
	}
}

// WithSearchPaths adds search paths scanned after the configured ones.
func WithSearchPaths(paths ...string) Option {
	return func(d *Discovery) {
		d.searchPaths = append(d.searchPaths, paths...)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discovery) {
		d.logger = logger
	}
}

// New creates a Discovery over cfg. A nil cfg scans only the paths given by options.
func New(cfg *config.Config, opts ...Option) *Discovery {
	d := &Discovery{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Modules implements extension.ModuleSource.
func (d *Discovery) Modules(ctx context.Context) ([]extension.Module, error) {
	modules, _, err := d.DiscoverAll(ctx)
	return modules, err
}

// SearchPaths returns the configured search paths followed by the ones added
// with WithSearchPaths, unresolved.
func (d *Discovery) SearchPaths() []string {
	var paths []string
	if d.cfg != nil {
		for _, p := range d.cfg.SearchPaths {
			paths = append(paths, string(p))
		}
	}
	return append(paths, d.searchPaths...)
}

func (d *Discovery) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) && d.baseDir != "" {
		path = filepath.Join(d.baseDir, path)
	}
	return filepath.Abs(path)
}

// Roots returns the absolute search paths followed by the absolute include
// directories. Paths that cannot be resolved are omitted; existence is not checked.
func (d *Discovery) Roots() []string {
	paths := d.SearchPaths()
	if d.cfg != nil {
		for _, entry := range d.cfg.Includes {
			paths = append(paths, string(entry.Path))
		}
	}
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := d.resolve(p); err == nil {
			roots = append(roots, abs)
		}
	}
	return roots
}
