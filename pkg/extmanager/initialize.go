// SPDX-License-Identifier: MPL-2.0

package extmanager

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/invowk/extman/internal/depgraph"
	"github.com/invowk/extman/internal/ordering"
	"github.com/invowk/extman/internal/typefeature"
	"github.com/invowk/extman/pkg/extension"
)

// ErrInvalidModuleName is returned when a module name is not a valid extension id.
var ErrInvalidModuleName = errors.New("invalid module name")

// initialize builds the snapshot. It runs at most once per Manager, under initMu.
func (m *Manager) initialize(ctx context.Context) (snap *snapshot, err error) {
	ctx, span := m.tracer.Start(ctx, "extmanager.Initialize")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	start := time.Now()

	modules, diags, err := m.enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating modules: %w", err)
	}

	valid := make([]extension.Module, 0, len(modules))
	for _, mod := range modules {
		if !mod.ManifestExists {
			m.logger.Debug("skipping module without manifest", "module", mod.Name, "path", mod.SubPath)
			diags = append(diags, extension.NewDiagnosticWithPath(extension.SeverityWarning,
				extension.CodeManifestMissing,
				fmt.Sprintf("module %q has no manifest and was skipped", mod.Name), mod.SubPath))
			continue
		}
		if !extension.IsValidID(mod.Name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidModuleName, mod.Name)
		}
		valid = append(valid, mod)
	}

	entries, err := m.buildEntries(ctx, valid)
	if err != nil {
		return nil, err
	}

	bound := typefeature.Bind(m.typeFeatures, entries)

	var all []*extension.Feature
	for _, entry := range entries {
		all = append(all, entry.Extension.Features...)
	}
	order, err := ordering.Order(all,
		ordering.AnyDependency(m.dependencyStrategies...),
		ordering.SumPriority(m.priorityStrategies...))
	if err != nil {
		return nil, err
	}

	snap = &snapshot{
		order:    order,
		features: make(map[string]*extension.Feature, len(order)),
		entries:  make(map[string]*extension.Entry, len(entries)),
		resolver: depgraph.New(order, depgraph.WithTracer(m.tracer)),
	}
	for _, f := range order {
		snap.features[f.ID] = f
	}
	for _, entry := range entries {
		snap.entries[entry.Extension.ID] = entry
	}
	snap.extensions, diags = extensionOrder(order, entries, diags)
	snap.diagnostics = append(diags, unknownDependencies(order, snap.features)...)

	span.SetAttributes(
		attribute.Int("extensions", len(snap.extensions)),
		attribute.Int("features", len(order)),
		attribute.Int("type_bindings", bound),
	)
	m.logger.Info("extensions initialized",
		"extensions", len(snap.extensions),
		"features", len(order),
		"type_bindings", bound,
		"diagnostics", len(snap.diagnostics),
		"duration", time.Since(start))
	return snap, nil
}

func (m *Manager) enumerate(ctx context.Context) ([]extension.Module, []extension.Diagnostic, error) {
	if ds, ok := m.source.(extension.DiagnosticSource); ok {
		return ds.DiscoverAll(ctx)
	}
	mods, err := m.source.Modules(ctx)
	return mods, nil, err
}

// buildEntries constructs extensions concurrently and returns their entries
// sorted by extension id.
func (m *Manager) buildEntries(ctx context.Context, modules []extension.Module) ([]*extension.Entry, error) {
	var loaded sync.Map // extension id -> *extension.Entry

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxParallelism)
	for _, mod := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry := m.buildEntry(mod)
			if _, dup := loaded.LoadOrStore(mod.Name, entry); dup {
				return &extension.DuplicateExtensionError{ID: mod.Name}
			}
			m.logger.Debug("extension loaded", "extension", mod.Name, "features", len(entry.Extension.Features))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]*extension.Entry, 0, len(modules))
	loaded.Range(func(_, v any) bool {
		entries = append(entries, v.(*extension.Entry))
		return true
	})
	slices.SortFunc(entries, func(a, b *extension.Entry) int {
		return cmp.Compare(a.Extension.ID, b.Extension.ID)
	})
	return entries, nil
}

func (m *Manager) buildEntry(mod extension.Module) *extension.Entry {
	ext := &extension.Extension{
		ID:       mod.Name,
		SubPath:  mod.SubPath,
		Manifest: mod.Manifest.WithDefaults(),
		Found:    true,
	}
	features := m.featuresProvider.Features(ext, ext.Manifest)
	ext.Features = make([]*extension.Feature, 0, len(features))
	for _, f := range features {
		f.ExtensionID = ext.ID
		f.ExtensionType = ext.Manifest.Type
		ext.Features = append(ext.Features, f)
	}
	return &extension.Entry{
		Extension:     ext,
		Handle:        mod.Handle,
		ExportedTypes: slices.Clone(mod.ExportedTypes),
	}
}

// extensionOrder places each extension at the canonical position of its
// earliest feature. Extensions without features follow, by id.
func extensionOrder(order []*extension.Feature, entries []*extension.Entry, diags []extension.Diagnostic) ([]*extension.Extension, []extension.Diagnostic) {
	byID := make(map[string]*extension.Extension, len(entries))
	for _, entry := range entries {
		byID[entry.Extension.ID] = entry.Extension
	}

	exts := make([]*extension.Extension, 0, len(entries))
	placed := make(map[string]bool, len(entries))
	for _, f := range order {
		if !placed[f.ExtensionID] {
			placed[f.ExtensionID] = true
			exts = append(exts, byID[f.ExtensionID])
		}
	}
	for _, entry := range entries {
		if !placed[entry.Extension.ID] {
			exts = append(exts, entry.Extension)
			diags = append(diags, extension.NewDiagnostic(extension.SeverityWarning,
				extension.CodeExtensionWithoutFeatures,
				fmt.Sprintf("extension %q declares no features", entry.Extension.ID)))
		}
	}
	return exts, diags
}

func unknownDependencies(order []*extension.Feature, known map[string]*extension.Feature) []extension.Diagnostic {
	var diags []extension.Diagnostic
	for _, f := range order {
		for _, dep := range f.Dependencies {
			if _, ok := known[dep]; !ok {
				diags = append(diags, extension.NewDiagnostic(extension.SeverityWarning,
					extension.CodeUnknownDependency,
					fmt.Sprintf("feature %q depends on unknown feature %q", f.ID, dep)))
			}
		}
	}
	return diags
}
