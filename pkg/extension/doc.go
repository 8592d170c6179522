// SPDX-License-Identifier: MPL-2.0

// Package extension defines the data model shared by every part of extman.
//
// An [Extension] is a discoverable, independently deployed unit. It owns an ordered
// list of [Feature] values, the smallest units that take part in dependency and
// priority ordering. Features point back to their extension through
// [Feature.ExtensionID] only; the relation is an id lookup, never a pointer, so the
// loaded universe stays a set of id-indexed tables without reference cycles.
//
// The package also holds the capability interfaces the resolution core is built
// from:
//   - [ModuleSource]: enumerates raw modules ([StaticSource], [MultiSource])
//   - [FeaturesProvider]: turns a [Manifest] into features ([ManifestFeaturesProvider])
//   - [DependencyStrategy] / [PriorityStrategy]: pluggable ordering rules
//   - [FeatureMarker]: optional per-type owner/opt-out marker for component types
//
// Manifests can be written as CUE (extension.cue), TOML (extension.toml) or YAML
// (extension.yaml); [ParseManifest] picks the decoder from the file name.
package extension
