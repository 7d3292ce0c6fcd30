// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"
)

// New creates a logger writing to stdout and installs it as the slog default.
// format is "json" or "text"; level is debug, info, warn or error.
func New(level, format string) *slog.Logger {
	l := NewWithWriter(os.Stdout, level, format)
	slog.SetDefault(l)
	return l
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
