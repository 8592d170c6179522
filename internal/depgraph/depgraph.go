// SPDX-License-Identifier: MPL-2.0

// Package depgraph answers transitive dependency and dependent queries over a
// canonically ordered feature set. Each (feature, direction) closure is
// computed at most once and then served from cache.
package depgraph

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/invowk/extman/pkg/extension"
)

const (
	// Dependencies follows declared dependencies: everything a feature needs.
	Dependencies Direction = iota
	// Dependents follows reverse edges: everything that needs a feature.
	Dependents
)

type (
	// Direction selects which way a closure walks the graph.
	Direction int

	// Resolver computes closures over an immutable canonical order.
	// It is safe for concurrent use.
	Resolver struct {
		order    []*extension.Feature
		position map[string]int
		// dependents maps a feature id to the ids that declare it as a dependency,
		// in canonical order.
		dependents map[string][]string
		cells      sync.Map // cacheKey -> func() []*extension.Feature
		computed   atomic.Int64
		tracer     trace.Tracer
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	cacheKey struct {
		id        string
		direction Direction
	}
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Dependencies:
		return "dependencies"
	case Dependents:
		return "dependents"
	default:
		return "unknown"
	}
}

// WithTracer records one span per computed closure. Cache hits are not traced.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = tracer
	}
}

// New indexes order, which must be the canonical feature order with unique ids.
func New(order []*extension.Feature, opts ...Option) *Resolver {
	r := &Resolver{
		order:      order,
		position:   make(map[string]int, len(order)),
		dependents: make(map[string][]string),
		tracer:     noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i, f := range order {
		r.position[f.ID] = i
	}
	for _, f := range order {
		for _, dep := range f.Dependencies {
			if _, ok := r.position[dep]; ok && dep != f.ID {
				r.dependents[dep] = append(r.dependents[dep], f.ID)
			}
		}
	}
	return r
}

// Resolve returns the closure of id in direction d, including id itself,
// projected through canonical order. An unknown id yields an empty slice.
// The returned slice is shared with the cache and must not be modified.
func (r *Resolver) Resolve(ctx context.Context, id string, d Direction) []*extension.Feature {
	if _, ok := r.position[id]; !ok {
		return []*extension.Feature{}
	}

	key := cacheKey{id: id, direction: d}
	if cell, ok := r.cells.Load(key); ok {
		return cell.(func() []*extension.Feature)()
	}
	cell, _ := r.cells.LoadOrStore(key, sync.OnceValue(func() []*extension.Feature {
		_, span := r.tracer.Start(ctx, "depgraph.Resolve", trace.WithAttributes(
			attribute.String("feature.id", id),
			attribute.String("direction", d.String()),
		))
		defer span.End()

		r.computed.Add(1)
		closure := r.project(r.walk(id, d))
		span.SetAttributes(attribute.Int("closure.size", len(closure)))
		return closure
	}))
	return cell.(func() []*extension.Feature)()
}

// Union returns the union of the closures of ids in direction d, deduplicated
// and projected through canonical order. Unknown ids contribute nothing.
func (r *Resolver) Union(ctx context.Context, ids []string, d Direction) []*extension.Feature {
	if len(ids) == 1 {
		return r.Resolve(ctx, ids[0], d)
	}
	visited := make(map[string]bool)
	for _, id := range ids {
		for _, f := range r.Resolve(ctx, id, d) {
			visited[f.ID] = true
		}
	}
	return r.project(visited)
}

// Computations returns how many closures have been computed so far.
func (r *Resolver) Computations() int64 { return r.computed.Load() }

// walk collects the reachable ids with an explicit stack, so deep graphs do
// not grow the goroutine stack.
func (r *Resolver) walk(start string, d Direction) map[string]bool {
	visited := map[string]bool{start: true}
	stack := r.neighbours(start, d)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, next := range r.neighbours(id, d) {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited
}

func (r *Resolver) neighbours(id string, d Direction) []string {
	if d == Dependents {
		return r.dependents[id]
	}
	f := r.order[r.position[id]]
	known := make([]string, 0, len(f.Dependencies))
	for _, dep := range f.Dependencies {
		if _, ok := r.position[dep]; ok {
			known = append(known, dep)
		}
	}
	return known
}

// project scans the canonical order once and keeps the visited features.
func (r *Resolver) project(visited map[string]bool) []*extension.Feature {
	out := make([]*extension.Feature, 0, len(visited))
	for _, f := range r.order {
		if visited[f.ID] {
			out = append(out, f)
		}
	}
	return out
}
