package timestamp

import (
	"regexp"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Matcher recognizes one timestamp shape in a line of raw text.
type Matcher interface {
	// Kind reports which format this matcher recognizes.
	Kind() model.FormatKind

	// Match returns the matched timestamp substring. ok is false when the
	// line does not contain this shape.
	Match(line string) (text string, ok bool)
}

// regexMatcher implements Matcher with a compiled pattern. When group is
// non-zero the submatch at that index is returned instead of the full match;
// this lets patterns anchor on surrounding separators without capturing them.
type regexMatcher struct {
	kind  model.FormatKind
	re    *regexp.Regexp
	group int
}

func (m *regexMatcher) Kind() model.FormatKind { return m.kind }

func (m *regexMatcher) Match(line string) (string, bool) {
	if m.group == 0 {
		loc := m.re.FindString(line)
		return loc, loc != ""
	}
	sub := m.re.FindStringSubmatch(line)
	if sub == nil {
		return "", false
	}
	return sub[m.group], true
}

// Extractor tries a fixed, priority-ordered list of matchers against a line.
// Order matters: shapes carrying an explicit zone or offset are tried before
// zone-less shapes, so a zoned timestamp is never captured by a looser
// pattern and stripped of its offset.
type Extractor struct {
	matchers []Matcher
}

// NewExtractor builds the standard extractor with the default matcher order:
//
//  1. ISO date-time ending in an explicit UTC marker ("Z")
//  2. ISO date-time ending in an explicit ±HH:MM offset
//  3. bracketed access-log form DD/Mon/YYYY:HH:MM:SS ±HHMM
//  4. date-and-time pair with no zone marker
//  5. bare time of day anchored on a trailing separator (one known
//     source emits this shape; nothing else does)
func NewExtractor() *Extractor {
	return &Extractor{matchers: []Matcher{
		&regexMatcher{
			kind: model.FormatUTCZ,
			re:   regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?Z`),
		},
		&regexMatcher{
			kind: model.FormatOffset,
			re:   regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?[+-]\d{2}:\d{2}`),
		},
		&regexMatcher{
			kind:  model.FormatApache,
			re:    regexp.MustCompile(`\[(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})\]`),
			group: 1,
		},
		&regexMatcher{
			kind: model.FormatBareDateTime,
			re:   regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?`),
		},
		&regexMatcher{
			kind:  model.FormatBareTime,
			re:    regexp.MustCompile(`(?:^|[\s\[])(\d{2}:\d{2}:\d{2})(?:\]| \|)`),
			group: 1,
		},
	}}
}

// Extract determines which timestamp shape the line contains, if any.
// Malformed input is expected: nothing here ever fails, an unmatched line
// simply yields FormatNone.
func (e *Extractor) Extract(line string) model.TimestampMatch {
	for _, m := range e.matchers {
		if text, ok := m.Match(line); ok {
			return model.TimestampMatch{Kind: m.Kind(), Text: text}
		}
	}
	return model.TimestampMatch{Kind: model.FormatNone}
}
