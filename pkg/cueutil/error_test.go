// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "extension.cue") != nil {
		t.Error("FormatError(nil) should return nil")
	}

	plain := errors.New("unexpected EOF")
	err := FormatError(plain, "blog.extmod/extension.cue")
	if got, want := err.Error(), "blog.extmod/extension.cue: unexpected EOF"; got != want {
		t.Errorf("FormatError() = %q, want %q", got, want)
	}
	if !errors.Is(err, plain) {
		t.Error("plain errors should stay unwrappable")
	}
}

func TestFormatError_CUEPaths(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecodeString[testDoc](testSchema, []byte(`name: "blog", count: "many"`), "#Doc",
		WithFilename("blog.extmod/extension.cue"))
	if err == nil {
		t.Fatal("expected a validation error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "blog.extmod/extension.cue: ") {
		t.Errorf("error should start with the file name, got %q", msg)
	}
	if !strings.Contains(msg, "count") {
		t.Errorf("error should name the offending field, got %q", msg)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"ordering", "theme_dependencies"}, "ordering.theme_dependencies"},
		{[]string{"features", "0", "id"}, "features[0].id"},
		{[]string{"features", "1", "dependencies", "2"}, "features[1].dependencies[2]"},
		{[]string{"0"}, "0"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, false},
		{"below limit", 10, false},
		{"at limit", 100, false},
		{"over limit", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckFileSize(make([]byte, tt.size), 100, "extension.cue")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "extension.cue: file size 101 bytes exceeds maximum 100 bytes") {
				t.Errorf("unexpected message: %v", err)
			}
		})
	}
}
