// SPDX-License-Identifier: MPL-2.0

// Package typefeature records which features a component type belongs to.
package typefeature

import (
	"go/token"
	"reflect"
	"slices"
	"sync"

	"github.com/invowk/extman/pkg/extension"
)

var markerType = reflect.TypeFor[extension.FeatureMarker]()

// Provider is a bidirectional type <-> feature index. It is safe for concurrent use.
type Provider struct {
	mu        sync.RWMutex
	byType    map[reflect.Type][]*extension.Feature
	byFeature map[string][]reflect.Type
}

// NewProvider returns an empty Provider.
func NewProvider() *Provider {
	return &Provider{
		byType:    make(map[reflect.Type][]*extension.Feature),
		byFeature: make(map[string][]reflect.Type),
	}
}

// TryAdd binds t to f. It returns false when the pair is already bound.
func (p *Provider) TryAdd(t reflect.Type, f *extension.Feature) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.ContainsFunc(p.byType[t], func(bound *extension.Feature) bool { return bound.ID == f.ID }) {
		return false
	}
	p.byType[t] = append(p.byType[t], f)
	p.byFeature[f.ID] = append(p.byFeature[f.ID], t)
	return true
}

// FeaturesForType returns the features t is bound to, in binding order.
func (p *Provider) FeaturesForType(t reflect.Type) []*extension.Feature {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.byType[t])
}

// FeatureForType returns the first feature t was bound to.
func (p *Provider) FeatureForType(t reflect.Type) (*extension.Feature, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if fs := p.byType[t]; len(fs) > 0 {
		return fs[0], true
	}
	return nil, false
}

// TypesForFeature returns the types bound to the feature id, in binding order.
func (p *Provider) TypesForFeature(id string) []reflect.Type {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.byFeature[id])
}

// Bind registers the exported component types of every entry, in the given
// order. A type binds to the feature named by its marker (the extension id
// by default) or, when the extension has no such feature, to all of its
// features. It returns the number of new bindings.
func Bind(p extension.TypeFeatureProvider, entries []*extension.Entry) int {
	bound := 0
	for _, entry := range entries {
		ext := entry.Extension
		for _, t := range entry.ExportedTypes {
			if !IsComponentType(t) {
				continue
			}
			marker, _ := MarkerFor(t)
			if marker.SkipRegistration {
				continue
			}

			name := marker.Feature
			if name == "" {
				name = ext.ID
			}
			if f, ok := ext.Feature(name); ok {
				if p.TryAdd(t, f) {
					bound++
				}
				continue
			}
			for _, f := range ext.Features {
				if p.TryAdd(t, f) {
					bound++
				}
			}
		}
	}
	return bound
}

// IsComponentType reports whether t can own a feature binding: an exported,
// named, non-interface type. Pointer types are not component types; export
// the element type instead.
func IsComponentType(t reflect.Type) bool {
	if t == nil || t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer {
		return false
	}
	return t.Name() != "" && t.PkgPath() != "" && token.IsExported(t.Name())
}

// MarkerFor returns the marker declared by t through extension.FeatureMarker,
// with either a value or a pointer receiver.
func MarkerFor(t reflect.Type) (extension.TypeMarker, bool) {
	switch {
	case t.Implements(markerType):
		if m, ok := reflect.Zero(t).Interface().(extension.FeatureMarker); ok {
			return m.FeatureMarker(), true
		}
	case reflect.PointerTo(t).Implements(markerType):
		if m, ok := reflect.New(t).Interface().(extension.FeatureMarker); ok {
			return m.FeatureMarker(), true
		}
	}
	return extension.TypeMarker{}, false
}

var _ extension.TypeFeatureProvider = (*Provider)(nil)
