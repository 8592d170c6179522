// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/invowk/extman/pkg/extension"
)

type (
	extensionView struct {
		ID          string   `json:"id"`
		Name        string   `json:"name,omitempty"`
		Type        string   `json:"type"`
		Version     string   `json:"version,omitempty"`
		Author      string   `json:"author,omitempty"`
		Description string   `json:"description,omitempty"`
		SubPath     string   `json:"sub_path,omitempty"`
		Found       bool     `json:"found"`
		Features    []string `json:"features"`
	}

	featureView struct {
		Position     int      `json:"position"`
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Extension    string   `json:"extension"`
		Type         string   `json:"type"`
		Priority     int      `json:"priority"`
		Dependencies []string `json:"dependencies"`
	}
)

func newExtensionView(ext *extension.Extension) extensionView {
	return extensionView{
		ID:          ext.ID,
		Name:        ext.Manifest.Name,
		Type:        ext.Manifest.Type.String(),
		Version:     ext.Manifest.Version,
		Author:      ext.Manifest.Author,
		Description: ext.Manifest.Description,
		SubPath:     ext.SubPath,
		Found:       ext.Found,
		Features:    extension.IDs(ext.Features),
	}
}

func newFeatureViews(features []*extension.Feature) []featureView {
	views := make([]featureView, len(features))
	for i, f := range features {
		deps := f.Dependencies
		if deps == nil {
			deps = []string{}
		}
		views[i] = featureView{
			Position:     i + 1,
			ID:           f.ID,
			Name:         f.Name,
			Extension:    f.ExtensionID,
			Type:         f.ExtensionType.String(),
			Priority:     f.Priority,
			Dependencies: deps,
		}
	}
	return views
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func writeFeatureTable(w io.Writer, features []*extension.Feature) {
	rows := make([][]string, len(features))
	for i, v := range newFeatureViews(features) {
		rows[i] = []string{
			strconv.Itoa(v.Position),
			v.ID,
			v.Extension,
			v.Type,
			strconv.Itoa(v.Priority),
			strings.Join(v.Dependencies, ", "),
		}
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"#", "FEATURE", "EXTENSION", "TYPE", "PRIORITY", "DEPENDS ON"}, rows))
}
