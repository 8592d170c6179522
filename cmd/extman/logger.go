// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/invowk/extman/internal/config"
)

// newLogger builds the slog logger handed to library packages, backed by a
// charmbracelet/log handler.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, err := log.ParseLevel(string(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	case config.LogFormatText:
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          serviceName,
		ReportTimestamp: cfg.Format != config.LogFormatText,
	})
	return slog.New(handler)
}
