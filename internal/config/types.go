// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// LogFormatText renders human-readable log lines.
	LogFormatText LogFormat = "text"
	// LogFormatJSON renders one JSON object per line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt renders key=value pairs.
	LogFormatLogfmt LogFormat = "logfmt"

	// extensionSuffix is the filesystem suffix for extension directories.
	// Defined locally to avoid coupling config to internal/discovery.
	extensionSuffix = ".extmod"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidExtensionPath is the sentinel error wrapped by InvalidExtensionPathError.
	ErrInvalidExtensionPath = errors.New("invalid extension path")
	// ErrInvalidMaxParallelism is returned for a negative discovery.max_parallelism.
	ErrInvalidMaxParallelism = errors.New("invalid max parallelism")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// LogFormat selects the CLI log formatter.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	// It wraps ErrInvalidLogFormat for errors.Is() compatibility.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// ExtensionPath is a filesystem path to a search directory or a *.extmod directory.
	// A valid path must be non-empty and not whitespace-only.
	ExtensionPath string

	// InvalidExtensionPathError is returned when an ExtensionPath value is
	// empty or whitespace-only. It wraps ErrInvalidExtensionPath for errors.Is().
	InvalidExtensionPathError struct {
		Value ExtensionPath
	}

	// InvalidMaxParallelismError is returned for a negative parallelism bound.
	InvalidMaxParallelismError struct {
		Value int
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// SearchPaths are scanned for immediate *.extmod subdirectories.
		SearchPaths []ExtensionPath `json:"search_paths" mapstructure:"search_paths"`
		// Includes lists extension directories loaded in addition to the search paths.
		Includes []IncludeEntry `json:"includes" mapstructure:"includes"`
		// Discovery tunes extension construction.
		Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery"`
		// Ordering selects the ordering strategies.
		Ordering OrderingConfig `json:"ordering" mapstructure:"ordering"`
		// Log configures the CLI logger.
		Log LogConfig `json:"log" mapstructure:"log"`
		// Telemetry configures trace export.
		Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	}

	// IncludeEntry is one explicitly included extension directory.
	IncludeEntry struct {
		Path ExtensionPath `json:"path" mapstructure:"path"`
	}

	// DiscoveryConfig tunes extension construction.
	DiscoveryConfig struct {
		// MaxParallelism bounds concurrent extension construction; 0 means GOMAXPROCS.
		MaxParallelism int `json:"max_parallelism" mapstructure:"max_parallelism"`
	}

	// OrderingConfig selects the ordering strategies.
	OrderingConfig struct {
		// ThemeDependencies orders every theme feature after every module feature.
		ThemeDependencies bool `json:"theme_dependencies" mapstructure:"theme_dependencies"`
	}

	// LogConfig configures the CLI logger.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}

	// TelemetryConfig configures trace export.
	TelemetryConfig struct {
		// OTLPEndpoint enables OTLP/HTTP trace export when set (a URL such as http://localhost:4318).
		OTLPEndpoint string `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SearchPaths: []ExtensionPath{},
		Includes:    []IncludeEntry{},
		Ordering:    OrderingConfig{ThemeDependencies: true},
		Log:         LogConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is one of the defined formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidLogFormatError.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the ExtensionPath.
func (p ExtensionPath) String() string { return string(p) }

// IsValid returns whether the ExtensionPath is non-empty and not whitespace-only.
func (p ExtensionPath) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidExtensionPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidExtensionPathError.
func (e *InvalidExtensionPathError) Error() string {
	return fmt.Sprintf("invalid extension path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidExtensionPath for errors.Is() compatibility.
func (e *InvalidExtensionPathError) Unwrap() error { return ErrInvalidExtensionPath }

// IsExtension reports whether the include path names a *.extmod directory.
func (e IncludeEntry) IsExtension() bool {
	return strings.HasSuffix(strings.TrimRight(string(e.Path), `/\`), extensionSuffix)
}

// IsValid returns whether the DiscoveryConfig has valid fields.
func (c DiscoveryConfig) IsValid() (bool, []error) {
	if c.MaxParallelism < 0 {
		return false, []error{&InvalidMaxParallelismError{Value: c.MaxParallelism}}
	}
	return true, nil
}

// Error implements the error interface for InvalidMaxParallelismError.
func (e *InvalidMaxParallelismError) Error() string {
	return fmt.Sprintf("discovery.max_parallelism must be >= 0, got %d", e.Value)
}

// Unwrap returns ErrInvalidMaxParallelism for errors.Is() compatibility.
func (e *InvalidMaxParallelismError) Unwrap() error { return ErrInvalidMaxParallelism }

// IsValid returns whether the Config has valid fields.
// It delegates to every path, Discovery and the log settings.
// Ordering and Telemetry need no validation.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, p := range c.SearchPaths {
		if valid, fieldErrs := p.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	for _, entry := range c.Includes {
		if valid, fieldErrs := entry.Path.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.Discovery.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
