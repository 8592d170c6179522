// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/extman/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/extman/config.cue on macOS, %APPDATA%\extman\config.cue
// on Windows), falling back to ./config.cue. EXTMAN_* environment variables override file
// values, e.g. EXTMAN_LOG_LEVEL=debug.
//
// Files are validated against the embedded #Config schema (config_schema.cue) before they
// are merged into Viper.
package config
