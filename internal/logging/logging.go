package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the package-level default slog logger. Diagnostics always go
// to stderr so rendered log lines on stdout stay clean; structured is true
// when stdout carries machine output (the json render mode or the server),
// in which case stderr gets JSON too so both streams parse the same way.
func Init(structured bool, level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a level name to slog.Level. Unknown names default to
// LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
