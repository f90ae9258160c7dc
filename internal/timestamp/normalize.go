package timestamp

import (
	"strings"
	"time"

	"github.com/crimson-sun/logdeck/internal/model"
)

const (
	isoLayout    = "2006-01-02T15:04:05Z07:00"
	apacheLayout = "02/Jan/2006:15:04:05 -0700"
	bareLayout   = "2006-01-02T15:04:05"
	timeLayout   = "15:04:05"
)

// Normalizer converts an extracted timestamp match into an absolute instant.
// Interpretation of zone-less shapes depends on the source's configured clock
// convention and, for server-local sources, the backend host's timezone.
//
// Normalization is a pure function of (match, source, server timezone, now):
// it has no side effects and identical inputs always yield identical output.
type Normalizer struct {
	conventions map[string]model.ClockConvention
	serverTZ    model.ServerTimezone
	now         func() time.Time // bare-time date reconstruction; stubbed in tests
}

// NewNormalizer builds a Normalizer. conventions maps source id to clock
// convention; sources absent from the map are AssumeUTC.
func NewNormalizer(conventions map[string]model.ClockConvention, serverTZ model.ServerTimezone) *Normalizer {
	return &Normalizer{
		conventions: conventions,
		serverTZ:    serverTZ,
		now:         time.Now,
	}
}

// Convention reports the clock convention configured for a source.
func (n *Normalizer) Convention(source string) model.ClockConvention {
	return n.conventions[source]
}

// Normalize resolves a match to an absolute instant, or nil when the match
// carries no recoverable timestamp. It never fails: a match that does not
// parse degrades to nil the same way an unrecognized line does.
func (n *Normalizer) Normalize(match model.TimestampMatch, source string) *time.Time {
	switch match.Kind {
	case model.FormatUTCZ, model.FormatOffset:
		return parseISO(match.Text)
	case model.FormatApache:
		return parseApache(match.Text)
	case model.FormatBareDateTime:
		return n.parseBareDateTime(match.Text, source)
	case model.FormatBareTime:
		return n.parseBareTime(match.Text, source)
	default:
		return nil
	}
}

// parseISO handles both the Z-suffixed and explicit-offset shapes.
func parseISO(text string) *time.Time {
	t, err := time.Parse(isoLayout, truncateFraction(canonicalSeparator(text)))
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// parseApache decodes the access-log fields and numeric offset; the embedded
// offset is subtracted to reach UTC.
func parseApache(text string) *time.Time {
	t, err := time.Parse(apacheLayout, text)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (n *Normalizer) parseBareDateTime(text, source string) *time.Time {
	loc := time.UTC
	if n.conventions[source] == model.AssumeServerLocal {
		loc = n.serverTZ.Location()
	}
	t, err := time.ParseInLocation(bareLayout, truncateFraction(canonicalSeparator(text)), loc)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// parseBareTime combines a time of day with the current UTC date. Only one
// known source emits this shape and it logs in server wall-clock time, so a
// bare time from a source that is not AssumeServerLocal is unresolvable.
// Best effort: the source text carries no date at all.
func (n *Normalizer) parseBareTime(text, source string) *time.Time {
	if n.conventions[source] != model.AssumeServerLocal {
		return nil
	}
	tod, err := time.Parse(timeLayout, text)
	if err != nil {
		return nil
	}
	today := n.now().UTC()
	u := time.Date(today.Year(), today.Month(), today.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, n.serverTZ.Location()).UTC()
	return &u
}

// canonicalSeparator rewrites a space date/time separator to "T" so a single
// layout covers both spellings.
func canonicalSeparator(text string) string {
	if len(text) > 10 && text[10] == ' ' {
		return text[:10] + "T" + text[11:]
	}
	return text
}

// truncateFraction caps fractional seconds at millisecond precision. Some
// sources emit seven or more fractional digits, which the parser rejects;
// the excess digits carry no display value, so they are dropped up front.
func truncateFraction(text string) string {
	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return text
	}
	end := dot + 1
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	frac := text[dot+1 : end]
	if len(frac) <= 3 {
		return text
	}
	return text[:dot+4] + text[end:]
}
