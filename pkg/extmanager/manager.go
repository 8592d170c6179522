// SPDX-License-Identifier: MPL-2.0

package extmanager

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/invowk/extman/internal/depgraph"
	"github.com/invowk/extman/internal/typefeature"
	"github.com/invowk/extman/pkg/extension"
)

const tracerName = "github.com/invowk/extman/pkg/extmanager"

type (
	// Manager is the query facade over the extension universe.
	// It is safe for concurrent use.
	Manager struct {
		source               extension.ModuleSource
		featuresProvider     extension.FeaturesProvider
		dependencyStrategies []extension.DependencyStrategy
		priorityStrategies   []extension.PriorityStrategy
		typeFeatures         extension.TypeFeatureProvider
		logger               *slog.Logger
		tracer               trace.Tracer
		maxParallelism       int

		// result is nil until initialization finished, successfully or not.
		result atomic.Pointer[initResult]
		initMu sync.Mutex
	}

	initResult struct {
		snap *snapshot
		err  error
	}

	// snapshot is the immutable state published by initialization.
	snapshot struct {
		order       []*extension.Feature
		features    map[string]*extension.Feature
		extensions  []*extension.Extension
		entries     map[string]*extension.Entry
		resolver    *depgraph.Resolver
		diagnostics []extension.Diagnostic
	}
)

// New creates a Manager reading modules from source. Nothing is discovered
// until the first query.
//
// Canonical order always honors declared feature dependencies:
// extension.DeclaredDependencyStrategy is consulted first and strategies from
// WithDependencyStrategies only add edges. Closures follow declared
// dependencies alone, so every feature of a closure precedes its dependents.
func New(source extension.ModuleSource, opts ...Option) *Manager {
	m := &Manager{
		source:               source,
		featuresProvider:     extension.ManifestFeaturesProvider{},
		priorityStrategies:   []extension.PriorityStrategy{extension.ManifestPriorityStrategy{}},
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dependencyStrategies = slices.Insert(m.dependencyStrategies, 0,
		extension.DependencyStrategy(extension.DeclaredDependencyStrategy{}))
	if m.typeFeatures == nil {
		m.typeFeatures = typefeature.NewProvider()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	if m.maxParallelism < 1 {
		m.maxParallelism = runtime.GOMAXPROCS(0)
	}
	return m
}

// EnsureInitialized discovers and registers every extension unless that
// already happened. Concurrent first callers block until one of them has
// finished; exactly one initialization runs per Manager.
func (m *Manager) EnsureInitialized(ctx context.Context) error {
	_, err := m.load(ctx)
	return err
}

func (m *Manager) load(ctx context.Context) (*snapshot, error) {
	if r := m.result.Load(); r != nil {
		return r.snap, r.err
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if r := m.result.Load(); r != nil {
		return r.snap, r.err
	}

	// Initialization is shared by every caller, so one caller's cancellation
	// must not become the sticky result.
	snap, err := m.initialize(context.WithoutCancel(ctx))
	if err != nil {
		m.logger.Error("extension initialization failed", "error", err)
		snap = nil
	}
	m.result.Store(&initResult{snap: snap, err: err})
	return snap, err
}

// GetExtension returns the extension with the given id, or the
// extension.NotFound placeholder.
func (m *Manager) GetExtension(ctx context.Context, id string) (*extension.Extension, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if entry, ok := snap.entries[id]; ok {
		return entry.Extension, nil
	}
	return extension.NotFound(id), nil
}

// GetExtensions returns every extension, ordered by the canonical position of
// its earliest feature.
func (m *Manager) GetExtensions(ctx context.Context) ([]*extension.Extension, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.extensions), nil
}

// GetFeature returns the feature with the given id.
func (m *Manager) GetFeature(ctx context.Context, id string) (*extension.Feature, bool, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, false, err
	}
	f, ok := snap.features[id]
	return f, ok, nil
}

// GetFeatures returns every feature in canonical order.
func (m *Manager) GetFeatures(ctx context.Context) ([]*extension.Feature, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.order), nil
}

// GetFeaturesByID returns the given features and their transitive
// dependencies in canonical order. Unknown ids are ignored; an empty ids
// yields an empty slice.
func (m *Manager) GetFeaturesByID(ctx context.Context, ids []string) ([]*extension.Feature, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*extension.Feature{}, nil
	}
	return slices.Clone(snap.resolver.Union(ctx, ids, depgraph.Dependencies)), nil
}

// LoadFeaturesAsync is GetFeatures returned as a Future.
func (m *Manager) LoadFeaturesAsync(ctx context.Context) *Future[[]*extension.Feature] {
	features, err := m.GetFeatures(ctx)
	return completed(features, err)
}

// LoadFeaturesByIDAsync is GetFeaturesByID returned as a Future.
func (m *Manager) LoadFeaturesByIDAsync(ctx context.Context, ids []string) *Future[[]*extension.Feature] {
	features, err := m.GetFeaturesByID(ctx, ids)
	return completed(features, err)
}

// LoadExtensionAsync returns the loaded entry of ext. The future holds nil
// when no extension with that id was loaded.
func (m *Manager) LoadExtensionAsync(ctx context.Context, ext *extension.Extension) *Future[*extension.Entry] {
	snap, err := m.load(ctx)
	if err != nil {
		return completed[*extension.Entry](nil, err)
	}
	if ext == nil {
		return completed[*extension.Entry](nil, nil)
	}
	return completed(snap.entries[ext.ID], nil)
}

// GetFeatureDependencies returns the feature and everything it transitively
// depends on, in canonical order. An unknown id yields an empty slice.
func (m *Manager) GetFeatureDependencies(ctx context.Context, id string) ([]*extension.Feature, error) {
	return m.closure(ctx, id, depgraph.Dependencies)
}

// GetDependentFeatures returns the feature and everything that transitively
// depends on it, in canonical order. An unknown id yields an empty slice.
func (m *Manager) GetDependentFeatures(ctx context.Context, id string) ([]*extension.Feature, error) {
	return m.closure(ctx, id, depgraph.Dependents)
}

func (m *Manager) closure(ctx context.Context, id string, d depgraph.Direction) ([]*extension.Feature, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.resolver.Resolve(ctx, id, d)), nil
}

// FeaturesForType returns the features the component type t is bound to.
func (m *Manager) FeaturesForType(ctx context.Context, t reflect.Type) ([]*extension.Feature, error) {
	if _, err := m.load(ctx); err != nil {
		return nil, err
	}
	return m.typeFeatures.FeaturesForType(t), nil
}

// TypesForFeature returns the component types bound to the feature id.
func (m *Manager) TypesForFeature(ctx context.Context, id string) ([]reflect.Type, error) {
	if _, err := m.load(ctx); err != nil {
		return nil, err
	}
	return m.typeFeatures.TypesForFeature(id), nil
}

// Diagnostics returns the non-fatal findings of initialization.
func (m *Manager) Diagnostics(ctx context.Context) ([]extension.Diagnostic, error) {
	snap, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.diagnostics), nil
}
