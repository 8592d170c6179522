// SPDX-License-Identifier: MPL-2.0

package extension

import "slices"

type (
	// FeaturesProvider builds the ordered feature list of an extension from its
	// manifest. It is called concurrently for distinct extensions and must not
	// share mutable state between calls.
	FeaturesProvider interface {
		Features(ext *Extension, m Manifest) []*Feature
	}

	// FeaturesProviderFunc adapts a plain function to FeaturesProvider.
	FeaturesProviderFunc func(ext *Extension, m Manifest) []*Feature

	// ManifestFeaturesProvider maps manifest feature declarations one to one.
	// A manifest without feature declarations yields a single feature named
	// after the extension, carrying the manifest-level metadata.
	ManifestFeaturesProvider struct{}
)

// Features implements FeaturesProvider.
func (fn FeaturesProviderFunc) Features(ext *Extension, m Manifest) []*Feature {
	return fn(ext, m)
}

// Features implements FeaturesProvider.
func (ManifestFeaturesProvider) Features(ext *Extension, m Manifest) []*Feature {
	if len(m.Features) == 0 {
		return []*Feature{{
			ID:                ext.ID,
			Name:              firstNonEmpty(m.Name, ext.ID),
			Description:       m.Description,
			Category:          m.Category,
			ExtensionID:       ext.ID,
			ExtensionType:     m.Type,
			Dependencies:      slices.Clone(m.Dependencies),
			Priority:          m.Priority,
			DefaultTenantOnly: m.DefaultTenantOnly,
			IsAlwaysEnabled:   m.AlwaysEnabled,
		}}
	}

	features := make([]*Feature, 0, len(m.Features))
	for _, fm := range m.Features {
		priority := m.Priority
		if fm.Priority != nil {
			priority = *fm.Priority
		}
		features = append(features, &Feature{
			ID:                fm.ID,
			Name:              firstNonEmpty(fm.Name, fm.ID),
			Description:       fm.Description,
			Category:          firstNonEmpty(fm.Category, m.Category),
			ExtensionID:       ext.ID,
			ExtensionType:     m.Type,
			Dependencies:      slices.Clone(fm.Dependencies),
			Priority:          priority,
			DefaultTenantOnly: fm.DefaultTenantOnly || m.DefaultTenantOnly,
			IsAlwaysEnabled:   fm.AlwaysEnabled || m.AlwaysEnabled,
		})
	}
	return features
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
