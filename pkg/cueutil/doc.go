// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the schema-first CUE decoding shared by extension
// manifests and the extman configuration file.
//
// Decoding always runs the same three steps: compile the embedded schema,
// unify the user document with a schema definition, then validate and decode
// into a Go value. Errors are rewritten so they name the offending field in
// JSON-path notation:
//
//	extension.cue: features[1].id: invalid value "2fast" (out of bound =~"^[A-Za-z]...")
//
// Usage:
//
//	//go:embed manifest_schema.cue
//	var schema string
//
//	res, err := cueutil.ParseAndDecodeString[Manifest](schema, data, "#Extension",
//	    cueutil.WithFilename("extension.cue"))
package cueutil
