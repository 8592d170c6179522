// SPDX-License-Identifier: MPL-2.0

package extension

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/invowk/extman/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// ManifestFileCUE is the preferred manifest file name.
	ManifestFileCUE = "extension.cue"
	// ManifestFileTOML is the TOML manifest file name.
	ManifestFileTOML = "extension.toml"
	// ManifestFileYAML is the YAML manifest file name.
	ManifestFileYAML = "extension.yaml"
	// ManifestFileYML is the alternate YAML manifest file name.
	ManifestFileYML = "extension.yml"
)

var (
	//go:embed manifest_schema.cue
	manifestSchema string

	// ManifestFileNames lists manifest file names in lookup order.
	ManifestFileNames = []string{ManifestFileCUE, ManifestFileTOML, ManifestFileYAML, ManifestFileYML}

	// ErrUnsupportedManifest is returned for a manifest file with an unknown extension.
	ErrUnsupportedManifest = errors.New("unsupported manifest format")
	// ErrInvalidManifest is the sentinel wrapped by InvalidManifestError.
	ErrInvalidManifest = errors.New("invalid manifest")

	idPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)*$`)
)

type (
	// Manifest is the format-independent content of an extension manifest.
	Manifest struct {
		// ID overrides the module name when set.
		ID                string            `json:"id,omitempty" toml:"id" yaml:"id"`
		Name              string            `json:"name,omitempty" toml:"name" yaml:"name"`
		Description       string            `json:"description,omitempty" toml:"description" yaml:"description"`
		Author            string            `json:"author,omitempty" toml:"author" yaml:"author"`
		Website           string            `json:"website,omitempty" toml:"website" yaml:"website"`
		Version           string            `json:"version,omitempty" toml:"version" yaml:"version"`
		Category          string            `json:"category,omitempty" toml:"category" yaml:"category"`
		Type              Type              `json:"type,omitempty" toml:"type" yaml:"type"`
		Priority          int               `json:"priority,omitempty" toml:"priority" yaml:"priority"`
		Dependencies      []string          `json:"dependencies,omitempty" toml:"dependencies" yaml:"dependencies"`
		Tags              []string          `json:"tags,omitempty" toml:"tags" yaml:"tags"`
		DefaultTenantOnly bool              `json:"default_tenant_only,omitempty" toml:"default_tenant_only" yaml:"default_tenant_only"`
		AlwaysEnabled     bool              `json:"always_enabled,omitempty" toml:"always_enabled" yaml:"always_enabled"`
		Features          []FeatureManifest `json:"features,omitempty" toml:"features" yaml:"features"`
	}

	// FeatureManifest declares one feature inside a manifest.
	FeatureManifest struct {
		ID          string `json:"id" toml:"id" yaml:"id"`
		Name        string `json:"name,omitempty" toml:"name" yaml:"name"`
		Description string `json:"description,omitempty" toml:"description" yaml:"description"`
		Category    string `json:"category,omitempty" toml:"category" yaml:"category"`
		// Priority falls back to the manifest priority when nil.
		Priority          *int     `json:"priority,omitempty" toml:"priority" yaml:"priority"`
		Dependencies      []string `json:"dependencies,omitempty" toml:"dependencies" yaml:"dependencies"`
		DefaultTenantOnly bool     `json:"default_tenant_only,omitempty" toml:"default_tenant_only" yaml:"default_tenant_only"`
		AlwaysEnabled     bool     `json:"always_enabled,omitempty" toml:"always_enabled" yaml:"always_enabled"`
	}

	// InvalidManifestError collects the rule violations found in a manifest.
	// It wraps ErrInvalidManifest for errors.Is() compatibility.
	InvalidManifestError struct {
		Path        string
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return fmt.Sprintf("%s: %s", e.Path, msgs[0])
	}
	return fmt.Sprintf("%s: invalid manifest:\n  %s", e.Path, strings.Join(msgs, "\n  "))
}

// Unwrap returns ErrInvalidManifest for errors.Is() compatibility.
func (e *InvalidManifestError) Unwrap() error { return ErrInvalidManifest }

// IsValidID reports whether id is a well-formed extension or feature id:
// a letter followed by letters, digits, '_' or '-', with optional dot-separated segments.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// FindManifest returns the first manifest file present in dir, in
// ManifestFileNames order.
func FindManifest(dir string) (string, bool) {
	for _, name := range ManifestFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ParseManifestFile reads and parses the manifest at path.
func ParseManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest at %s: %w", path, err)
	}
	return ParseManifest(data, path)
}

// ParseManifest decodes manifest bytes. The decoder is chosen from the file
// extension of path (.cue, .toml, .yaml/.yml). The result is normalized and
// validated.
func ParseManifest(data []byte, path string) (Manifest, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return Manifest{}, err
	}

	var (
		m   Manifest
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		m, err = parseCUE(data, path)
	case ".toml":
		m, err = parseTOML(data, path)
	case ".yaml", ".yml":
		m, err = parseYAML(data, path)
	default:
		return Manifest{}, fmt.Errorf("%s: %w", path, ErrUnsupportedManifest)
	}
	if err != nil {
		return Manifest{}, err
	}

	m = m.WithDefaults()
	if err := m.Validate(path); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func parseCUE(data []byte, path string) (Manifest, error) {
	result, err := cueutil.ParseAndDecodeString[Manifest](
		manifestSchema,
		data,
		"#Extension",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return Manifest{}, err
	}
	return *result.Value, nil
}

func parseTOML(data []byte, path string) (Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, de := range strict.Errors {
				keys = append(keys, strings.Join(de.Key(), "."))
			}
			return Manifest{}, fmt.Errorf("%s: unknown fields: %s", path, strings.Join(keys, ", "))
		}
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func parseYAML(data []byte, path string) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("%s: empty manifest", path)
		}
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WithDefaults returns a copy with the defaults the CUE schema applies, so that
// every format and in-process manifests yield the same Manifest.
func (m Manifest) WithDefaults() Manifest {
	if m.Type == "" {
		m.Type = TypeModule
	}
	return m
}

// Validate checks the rules shared by every manifest format. path is only
// used in the error message.
func (m Manifest) Validate(path string) error {
	var errs []error

	if m.ID != "" && !IsValidID(m.ID) {
		errs = append(errs, fmt.Errorf("id: %q is not a valid identifier", m.ID))
	}
	if valid, typeErrs := m.Type.IsValid(); !valid {
		errs = append(errs, typeErrs...)
	}
	for _, dep := range m.Dependencies {
		if !IsValidID(dep) {
			errs = append(errs, fmt.Errorf("dependencies: %q is not a valid identifier", dep))
		}
		if m.ID != "" && dep == m.ID {
			errs = append(errs, fmt.Errorf("dependencies: extension %q depends on itself", m.ID))
		}
	}

	seen := make(map[string]int, len(m.Features))
	for i, f := range m.Features {
		if !IsValidID(f.ID) {
			errs = append(errs, fmt.Errorf("features[%d].id: %q is not a valid identifier", i, f.ID))
		}
		if first, dup := seen[f.ID]; dup {
			errs = append(errs, fmt.Errorf("features[%d].id: %q already declared by features[%d]", i, f.ID, first))
		} else {
			seen[f.ID] = i
		}
		for _, dep := range f.Dependencies {
			if dep == f.ID {
				errs = append(errs, fmt.Errorf("features[%d].dependencies: feature %q depends on itself", i, f.ID))
			}
		}
	}

	if len(errs) > 0 {
		return &InvalidManifestError{Path: path, FieldErrors: errs}
	}
	return nil
}
