// SPDX-License-Identifier: MPL-2.0

package extmanager

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/invowk/extman/pkg/extension"
)

// Option configures a Manager.
type Option func(*Manager)

// WithFeaturesProvider replaces the default extension.ManifestFeaturesProvider.
func WithFeaturesProvider(p extension.FeaturesProvider) Option {
	return func(m *Manager) {
		m.featuresProvider = p
	}
}

// WithDependencyStrategies adds ordering edges on top of
// extension.DeclaredDependencyStrategy, which is always consulted.
func WithDependencyStrategies(strategies ...extension.DependencyStrategy) Option {
	return func(m *Manager) {
		m.dependencyStrategies = append(m.dependencyStrategies, strategies...)
	}
}

// WithPriorityStrategies replaces the priority strategies. The default is
// extension.ManifestPriorityStrategy alone.
func WithPriorityStrategies(strategies ...extension.PriorityStrategy) Option {
	return func(m *Manager) {
		m.priorityStrategies = strategies
	}
}

// WithTypeFeatureProvider sets the index that receives type bindings.
func WithTypeFeatureProvider(p extension.TypeFeatureProvider) Option {
	return func(m *Manager) {
		m.typeFeatures = p
	}
}

// WithLogger sets the logger. Defaults to discarding all output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracer sets the tracer used for initialization and closure spans.
// Defaults to the global otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithMaxParallelism bounds the number of extensions built concurrently.
// Values below 1 mean runtime.GOMAXPROCS(0).
func WithMaxParallelism(n int) Option {
	return func(m *Manager) {
		m.maxParallelism = n
	}
}
