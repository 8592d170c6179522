// SPDX-License-Identifier: MPL-2.0

// Package extmanager discovers extensions, orders their features and answers
// dependency queries.
//
// A Manager is lazy: the first query enumerates the module source, builds
// every extension concurrently, binds component types to features, computes
// the canonical feature order and publishes the result as one immutable
// snapshot. Later queries read the snapshot without locking. Dependency and
// dependent closures are computed on first request and cached.
//
//	m := extmanager.New(extension.StaticSource{
//		extension.NewModule(extension.Manifest{ID: "Blog"}, nil, reflect.TypeFor[blog.Publisher]()),
//	})
//	features, err := m.GetFeaturesByID(ctx, []string{"Blog"})
//
// Initialization runs once per Manager. When it fails, every query returns
// the same error; construct a new Manager to retry.
package extmanager
