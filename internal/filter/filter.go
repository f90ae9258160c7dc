// Package filter applies the display filter pipeline to a merged sequence.
package filter

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Criteria describes one pass of the filter pipeline. The zero value is a
// no-op: every line passes.
type Criteria struct {
	From *time.Time
	To   *time.Time

	TextQuery     string
	RegexQuery    string
	CaseSensitive bool

	// Levels is the set of severities to keep. Empty means keep all.
	Levels map[model.Level]bool

	// ExclusionPatterns are user-supplied substrings; any match drops the
	// line (case-insensitive). Built-in markers are controlled separately.
	ExclusionPatterns []string

	// HideDebug, HideInfo, HidePings and HideHealthChecks enable the
	// built-in exclusion markers.
	HideDebug        bool
	HideInfo         bool
	HidePings        bool
	HideHealthChecks bool
}

// Built-in exclusion marker substrings.
const (
	markerDebug  = "[DEBUG]"
	markerInfo   = "[INFO]"
	markerPing   = "ping"
	markerHealth = "health"
)

// level marker tokens checked during classification, uppercase.
var levelMarkers = []struct {
	token string
	level model.Level
}{
	{"ERROR", model.LevelError},
	{"FATAL", model.LevelError},
	{"CRIT", model.LevelError},
	{"WARN", model.LevelWarn},
	{"INFO", model.LevelInfo},
	{"NOTICE", model.LevelInfo},
	{"DEBUG", model.LevelDebug},
	{"TRACE", model.LevelDebug},
}

// Classify determines a line's severity from marker tokens in its text.
// Lines with no recognizable marker are LevelUnknown.
func Classify(raw string) model.Level {
	upper := strings.ToUpper(raw)
	for _, m := range levelMarkers {
		if strings.Contains(upper, m.token) {
			return m.level
		}
	}
	return model.LevelUnknown
}

var foldCaser = cases.Fold()

// Apply runs the pipeline stages in order (time range, text/regex search,
// exclusion, level), each stage only ever removing lines, never reordering
// them. Filtering an already-filtered sequence with the same criteria is a
// no-op.
//
// A regex query that fails to compile is reported through warnings and that
// sub-stage is skipped; it never aborts the pass.
func Apply(lines []model.LogLine, c Criteria) (out []model.LogLine, warnings []string) {
	var re *regexp.Regexp
	if c.RegexQuery != "" {
		var err error
		pattern := c.RegexQuery
		if !c.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err = regexp.Compile(pattern)
		if err != nil {
			warnings = append(warnings, "invalid regex filter: "+err.Error())
			re = nil
		}
	}

	text := c.TextQuery
	if text != "" && !c.CaseSensitive {
		text = foldCaser.String(text)
	}

	out = make([]model.LogLine, 0, len(lines))
	for _, line := range lines {
		if !inRange(line, c) {
			continue
		}
		if !matchesText(line.Raw, text, c.CaseSensitive) {
			continue
		}
		if re != nil && !re.MatchString(line.Raw) {
			continue
		}
		if excluded(line.Raw, c) {
			continue
		}
		if !levelAllowed(line.Raw, c.Levels) {
			continue
		}
		out = append(out, line)
	}
	return out, warnings
}

// inRange keeps untimed lines unconditionally: a line whose instant could not
// be recovered is never dropped by the time stage.
func inRange(line model.LogLine, c Criteria) bool {
	if line.Instant == nil {
		return true
	}
	if c.From != nil && line.Instant.Before(*c.From) {
		return false
	}
	if c.To != nil && line.Instant.After(*c.To) {
		return false
	}
	return true
}

func matchesText(raw, query string, caseSensitive bool) bool {
	if query == "" {
		return true
	}
	if caseSensitive {
		return strings.Contains(raw, query)
	}
	return strings.Contains(foldCaser.String(raw), foldCaser.String(query))
}

func excluded(raw string, c Criteria) bool {
	folded := foldCaser.String(raw)
	if c.HideDebug && strings.Contains(raw, markerDebug) {
		return true
	}
	if c.HideInfo && strings.Contains(raw, markerInfo) {
		return true
	}
	if c.HidePings && strings.Contains(folded, markerPing) {
		return true
	}
	if c.HideHealthChecks && strings.Contains(folded, markerHealth) {
		return true
	}
	for _, p := range c.ExclusionPatterns {
		if p == "" {
			continue
		}
		if strings.Contains(folded, foldCaser.String(p)) {
			return true
		}
	}
	return false
}

func levelAllowed(raw string, levels map[model.Level]bool) bool {
	if len(levels) == 0 {
		return true
	}
	lv := Classify(raw)
	if lv == model.LevelUnknown {
		// No recognizable marker: always passes the level stage.
		return true
	}
	return levels[lv]
}
