// SPDX-License-Identifier: MPL-2.0

package extension

import (
	"context"
	"fmt"
	"reflect"
)

type (
	// Module is one raw unit handed over by a ModuleSource.
	Module struct {
		// Name is the module name; it becomes the extension id.
		Name string
		// SubPath locates the module relative to its discovery root.
		SubPath string
		// ManifestPath is where the manifest was read from (empty for in-process modules).
		ManifestPath string
		// ManifestExists reports whether a manifest backs the module. Modules
		// without one are skipped by the manager.
		ManifestExists bool
		// Manifest is the parsed manifest.
		Manifest Manifest
		// Handle is the backing code-module handle, opaque to extman.
		Handle any
		// ExportedTypes lists the component types the module exports.
		ExportedTypes []reflect.Type
	}

	// ModuleSource enumerates raw modules.
	ModuleSource interface {
		Modules(ctx context.Context) ([]Module, error)
	}

	// ModuleSourceFunc adapts a plain function to ModuleSource.
	ModuleSourceFunc func(ctx context.Context) ([]Module, error)

	// StaticSource serves a fixed, in-process list of modules. It is how Go
	// programs register compiled-in extensions.
	StaticSource []Module

	// MultiSource concatenates the modules of several sources, in order.
	MultiSource []ModuleSource
)

// Modules implements ModuleSource.
func (fn ModuleSourceFunc) Modules(ctx context.Context) ([]Module, error) {
	return fn(ctx)
}

// Modules implements ModuleSource. The returned slice is a copy.
func (s StaticSource) Modules(ctx context.Context) ([]Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Module(nil), s...), nil
}

// Modules implements ModuleSource.
func (s MultiSource) Modules(ctx context.Context) ([]Module, error) {
	all, _, err := s.DiscoverAll(ctx)
	return all, err
}

// DiscoverAll implements DiagnosticSource. Diagnostics are collected from the
// sources that report them.
func (s MultiSource) DiscoverAll(ctx context.Context) ([]Module, []Diagnostic, error) {
	var (
		all   []Module
		diags []Diagnostic
	)
	for i, src := range s {
		var (
			mods []Module
			err  error
		)
		if ds, ok := src.(DiagnosticSource); ok {
			var d []Diagnostic
			mods, d, err = ds.DiscoverAll(ctx)
			diags = append(diags, d...)
		} else {
			mods, err = src.Modules(ctx)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("module source %d: %w", i, err)
		}
		all = append(all, mods...)
	}
	return all, diags, nil
}

// NewModule builds an in-process module from a manifest. The module name is
// the manifest id, and types are exported as given.
func NewModule(m Manifest, handle any, types ...reflect.Type) Module {
	return Module{
		Name:           m.ID,
		ManifestExists: true,
		Manifest:       m,
		Handle:         handle,
		ExportedTypes:  types,
	}
}
