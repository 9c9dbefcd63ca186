package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Levels lists the accepted level names from most to least verbose.
var Levels = []string{"debug", "info", "warn", "error"}

// ParseLevel maps a level name to a slog.Level. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (want one of %s)", name, strings.Join(Levels, ", "))
	}
}

// Enabled reports whether a message at level is emitted under the configured level.
// Unknown configured levels behave as info.
func Enabled(configured string, level slog.Level) bool {
	threshold, _ := ParseLevel(configured)
	return level >= threshold
}

// New returns a text logger writing to w at the named level.
func New(w io.Writer, level string) (*slog.Logger, error) {
	if _, err := ParseLevel(level); err != nil {
		return nil, err
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&levelFilter{Handler: inner, configured: level}), nil
}

// levelFilter drops records that Enabled rejects for the configured level.
type levelFilter struct {
	slog.Handler
	configured string
}

func (h *levelFilter) Enabled(_ context.Context, level slog.Level) bool {
	return Enabled(h.configured, level)
}

func (h *levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFilter{Handler: h.Handler.WithAttrs(attrs), configured: h.configured}
}

func (h *levelFilter) WithGroup(name string) slog.Handler {
	return &levelFilter{Handler: h.Handler.WithGroup(name), configured: h.configured}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
