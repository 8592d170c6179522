// SPDX-License-Identifier: MPL-2.0

package extension

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

const (
	// TypeModule is the default extension type.
	TypeModule Type = "module"
	// TypeTheme marks an extension whose features render on top of modules.
	TypeTheme Type = "theme"
)

var (
	// ErrDuplicateExtension is the sentinel wrapped by DuplicateExtensionError.
	ErrDuplicateExtension = errors.New("duplicate extension id")
	// ErrDuplicateFeature is the sentinel wrapped by DuplicateFeatureError.
	ErrDuplicateFeature = errors.New("duplicate feature id")
	// ErrInvalidType is returned when a Type value is not recognized.
	ErrInvalidType = errors.New("invalid extension type")
)

type (
	// Type distinguishes regular modules from themes.
	Type string

	// InvalidTypeError is returned when a Type value is not recognized.
	// It wraps ErrInvalidType for errors.Is() compatibility.
	InvalidTypeError struct {
		Value Type
	}

	// DuplicateExtensionError is returned when two modules resolve to the same extension id.
	DuplicateExtensionError struct {
		ID string
	}

	// DuplicateFeatureError is returned when two features share an id. Feature ids
	// must be unique across the whole loaded universe.
	DuplicateFeatureError struct {
		ID                string
		FirstExtensionID  string
		SecondExtensionID string
	}

	// Extension describes a discovered extension and the features it owns.
	// Extensions are immutable once the manager has published them.
	Extension struct {
		// ID is the extension identifier (the module name).
		ID string
		// SubPath locates the extension relative to the root it was discovered in.
		SubPath string
		// Manifest is the parsed manifest data.
		Manifest Manifest
		// Features lists the owned features in declaration order.
		Features []*Feature
		// Found is false only for the placeholder returned by NotFound.
		Found bool
	}

	// Feature is the smallest dependency- and priority-aware orderable unit.
	Feature struct {
		// ID is unique across every loaded extension.
		ID string
		// Name is the display name; it defaults to ID.
		Name string
		// Description is optional free text.
		Description string
		// Category groups features for display.
		Category string
		// ExtensionID identifies the owning extension.
		ExtensionID string
		// ExtensionType is the owning extension's type, copied at construction.
		ExtensionType Type
		// Dependencies lists the ids of the features this feature requires.
		Dependencies []string
		// Priority is the feature's own priority contribution; lower sorts first.
		Priority int
		// DefaultTenantOnly restricts the feature to the default tenant.
		DefaultTenantOnly bool
		// IsAlwaysEnabled marks features that cannot be disabled.
		IsAlwaysEnabled bool
	}

	// Entry pairs an extension with its loaded code module and exported types.
	// It is created once during initialization and never mutated afterwards.
	Entry struct {
		Extension     *Extension
		Handle        any
		ExportedTypes []reflect.Type
	}
)

// String returns the string representation of the Type.
func (t Type) String() string { return string(t) }

// IsValid returns whether the Type is a recognized value.
// The zero value is not valid; ParseManifest normalizes it to TypeModule.
func (t Type) IsValid() (bool, []error) {
	switch t {
	case TypeModule, TypeTheme:
		return true, nil
	default:
		return false, []error{&InvalidTypeError{Value: t}}
	}
}

// Error implements the error interface.
func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid extension type %q (valid: module, theme)", e.Value)
}

// Unwrap returns ErrInvalidType for errors.Is() compatibility.
func (e *InvalidTypeError) Unwrap() error { return ErrInvalidType }

// Error implements the error interface.
func (e *DuplicateExtensionError) Error() string {
	return fmt.Sprintf("extension %q is provided by more than one module", e.ID)
}

// Unwrap returns ErrDuplicateExtension for errors.Is() compatibility.
func (e *DuplicateExtensionError) Unwrap() error { return ErrDuplicateExtension }

// Error implements the error interface.
func (e *DuplicateFeatureError) Error() string {
	return fmt.Sprintf("feature %q is declared by both extension %q and extension %q",
		e.ID, e.FirstExtensionID, e.SecondExtensionID)
}

// Unwrap returns ErrDuplicateFeature for errors.Is() compatibility.
func (e *DuplicateFeatureError) Unwrap() error { return ErrDuplicateFeature }

// NotFound returns the placeholder standing in for an unknown extension id.
// It echoes the id and carries an empty manifest and an empty feature list.
func NotFound(id string) *Extension {
	return &Extension{
		ID:       id,
		Features: []*Feature{},
	}
}

// IsTheme reports whether the extension is a theme.
func (e *Extension) IsTheme() bool {
	return e.Manifest.Type == TypeTheme
}

// Feature returns the owned feature with the given id.
func (e *Extension) Feature(id string) (*Feature, bool) {
	for _, f := range e.Features {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// IsTheme reports whether the owning extension is a theme.
func (f *Feature) IsTheme() bool {
	return f.ExtensionType == TypeTheme
}

// DependsOn reports whether id is one of the feature's declared dependencies.
func (f *Feature) DependsOn(id string) bool {
	return slices.Contains(f.Dependencies, id)
}

// String renders the feature as "id (extension)".
func (f *Feature) String() string {
	var sb strings.Builder
	sb.WriteString(f.ID)
	if f.ExtensionID != "" && f.ExtensionID != f.ID {
		sb.WriteString(" (")
		sb.WriteString(f.ExtensionID)
		sb.WriteString(")")
	}
	return sb.String()
}

// IDs returns the ids of the given features, preserving order.
func IDs(features []*Feature) []string {
	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	return ids
}
