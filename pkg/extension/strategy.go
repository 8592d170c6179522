// SPDX-License-Identifier: MPL-2.0

package extension

type (
	// DependencyStrategy decides whether observer must be ordered after subject.
	// Any number of strategies may be registered; their answers are OR-combined.
	DependencyStrategy interface {
		HasDependency(observer, subject *Feature) bool
	}

	// PriorityStrategy contributes to a feature's ordering priority.
	// Any number of strategies may be registered; their answers are summed and
	// lower totals sort first among otherwise unconstrained features.
	PriorityStrategy interface {
		Priority(feature *Feature) int
	}

	// DeclaredDependencyStrategy orders a feature after every feature listed in
	// its Dependencies.
	DeclaredDependencyStrategy struct{}

	// ThemeDependencyStrategy orders every theme feature after every module feature.
	ThemeDependencyStrategy struct{}

	// ManifestPriorityStrategy contributes the priority declared in the manifest.
	ManifestPriorityStrategy struct{}

	// DependencyStrategyFunc adapts a plain function to DependencyStrategy.
	DependencyStrategyFunc func(observer, subject *Feature) bool

	// PriorityStrategyFunc adapts a plain function to PriorityStrategy.
	PriorityStrategyFunc func(feature *Feature) int
)

// HasDependency implements DependencyStrategy.
func (DeclaredDependencyStrategy) HasDependency(observer, subject *Feature) bool {
	return observer.DependsOn(subject.ID)
}

// HasDependency implements DependencyStrategy.
func (ThemeDependencyStrategy) HasDependency(observer, subject *Feature) bool {
	return observer.IsTheme() && !subject.IsTheme()
}

// Priority implements PriorityStrategy.
func (ManifestPriorityStrategy) Priority(feature *Feature) int {
	return feature.Priority
}

// HasDependency implements DependencyStrategy.
func (fn DependencyStrategyFunc) HasDependency(observer, subject *Feature) bool {
	return fn(observer, subject)
}

// Priority implements PriorityStrategy.
func (fn PriorityStrategyFunc) Priority(feature *Feature) int {
	return fn(feature)
}
