// SPDX-License-Identifier: MPL-2.0

package extension

import "reflect"

type (
	// TypeMarker carries the optional per-type discovery metadata.
	TypeMarker struct {
		// Feature names the owning feature. Empty means the extension id.
		Feature string
		// SkipRegistration opts the type out of feature registration entirely.
		SkipRegistration bool
	}

	// FeatureMarker is implemented by component types that want to name their
	// owning feature or opt out of registration. The method is called on a zero
	// value, so it must not depend on instance state. Pointer receivers are
	// supported.
	//
	//	type Publisher struct{}
	//
	//	func (Publisher) FeatureMarker() extension.TypeMarker {
	//		return extension.TypeMarker{Feature: "Acme.Blog.Publishing"}
	//	}
	FeatureMarker interface {
		FeatureMarker() TypeMarker
	}

	// TypeFeatureProvider indexes component types by the features they belong to.
	// Implementations must be safe for concurrent use.
	TypeFeatureProvider interface {
		// TryAdd binds t to f and reports false when the pair already exists.
		TryAdd(t reflect.Type, f *Feature) bool
		FeaturesForType(t reflect.Type) []*Feature
		FeatureForType(t reflect.Type) (*Feature, bool)
		TypesForFeature(id string) []reflect.Type
	}
)
