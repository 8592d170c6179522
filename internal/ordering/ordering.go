// SPDX-License-Identifier: MPL-2.0

// Package ordering computes the canonical feature order: a topological order
// of the dependency relation in which unconstrained features are placed by
// ascending priority, then by id.
package ordering

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/invowk/extman/internal/dag"
	"github.com/invowk/extman/pkg/extension"
)

type (
	// DependencyFunc reports whether observer must come after subject.
	DependencyFunc func(observer, subject *extension.Feature) bool

	// PriorityFunc returns the ordering priority of a feature. Lower comes first.
	PriorityFunc func(feature *extension.Feature) int
)

// Order returns features in canonical order. The input order does not matter.
// Every feature id must be unique; a duplicate yields a
// *extension.DuplicateFeatureError and a dependency cycle a *dag.CycleError.
func Order(features []*extension.Feature, hasDependency DependencyFunc, priority PriorityFunc) ([]*extension.Feature, error) {
	baseline := slices.Clone(features)
	slices.SortStableFunc(baseline, func(a, b *extension.Feature) int {
		return cmp.Compare(a.ID, b.ID)
	})

	byID := make(map[string]*extension.Feature, len(baseline))
	g := dag.New()
	for _, f := range baseline {
		if prev, dup := byID[f.ID]; dup {
			return nil, &extension.DuplicateFeatureError{
				ID:                f.ID,
				FirstExtensionID:  prev.ExtensionID,
				SecondExtensionID: f.ExtensionID,
			}
		}
		byID[f.ID] = f
		g.SetPriority(f.ID, priority(f))
	}

	for _, observer := range baseline {
		for _, subject := range baseline {
			if observer != subject && hasDependency(observer, subject) {
				g.AddEdge(subject.ID, observer.ID)
			}
		}
	}

	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("ordering %d features: %w", len(baseline), err)
	}

	ordered := make([]*extension.Feature, len(ids))
	for i, id := range ids {
		ordered[i] = byID[id]
	}
	return ordered, nil
}

// AnyDependency combines strategies with a logical OR. With no strategies no
// feature depends on another.
func AnyDependency(strategies ...extension.DependencyStrategy) DependencyFunc {
	return func(observer, subject *extension.Feature) bool {
		for _, s := range strategies {
			if s.HasDependency(observer, subject) {
				return true
			}
		}
		return false
	}
}

// SumPriority adds up the priorities of strategies. With no strategies every
// feature has priority 0.
func SumPriority(strategies ...extension.PriorityStrategy) PriorityFunc {
	return func(feature *extension.Feature) int {
		sum := 0
		for _, s := range strategies {
			sum += s.Priority(feature)
		}
		return sum
	}
}
