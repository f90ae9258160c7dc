package model

import "strings"

// Level is the severity classified from a line's marker tokens.
type Level string

const (
	LevelError   Level = "error"
	LevelWarn    Level = "warn"
	LevelInfo    Level = "info"
	LevelDebug   Level = "debug"
	LevelUnknown Level = "unknown"
)

// Levels lists the classifiable severities, most severe first. LevelUnknown
// is excluded: unclassifiable lines always pass a level filter, so keeping
// "unknown" is never a meaningful choice.
var Levels = []Level{LevelError, LevelWarn, LevelInfo, LevelDebug}

// ParseLevel maps a user-supplied string to a Level.
// Unrecognized strings map to LevelUnknown.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err", "fatal", "critical":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug", "trace":
		return LevelDebug
	default:
		return LevelUnknown
	}
}
