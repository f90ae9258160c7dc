package model

import "time"

// LogLine is one line of raw text from one source, annotated with whatever
// timestamp information could be recovered from it.
type LogLine struct {
	Source  string         // identifier of the producing service
	Raw     string         // original line text
	Format  TimestampMatch // detected timestamp shape, Kind == FormatNone when nothing matched
	Instant *time.Time     // absolute instant, nil when no format matched
	Seq     int            // position within the source's original output, sort tiebreaker
}

// FormatKind identifies which timestamp shape was found in a line.
type FormatKind int

const (
	// FormatNone means no known timestamp shape matched.
	FormatNone FormatKind = iota
	// FormatUTCZ is an ISO timestamp ending in an explicit UTC marker ("Z").
	FormatUTCZ
	// FormatOffset is an ISO timestamp ending in an explicit ±HH:MM offset.
	FormatOffset
	// FormatApache is the bracketed access-log form DD/Mon/YYYY:HH:MM:SS ±HHMM.
	FormatApache
	// FormatBareDateTime is a date-and-time pair with no zone marker.
	FormatBareDateTime
	// FormatBareTime is a time of day with no date and no zone.
	FormatBareTime
)

func (k FormatKind) String() string {
	switch k {
	case FormatUTCZ:
		return "utc-z"
	case FormatOffset:
		return "offset"
	case FormatApache:
		return "apache"
	case FormatBareDateTime:
		return "bare-datetime"
	case FormatBareTime:
		return "bare-time"
	default:
		return "none"
	}
}

// TimestampMatch is the result of running the extractor over a line: the
// recognized shape plus the exact substring that matched.
type TimestampMatch struct {
	Kind FormatKind
	Text string // matched substring, empty for FormatNone
}

// ClockConvention describes how zone-less timestamps from a source are to be
// interpreted. It is static per source id and comes from configuration, never
// inferred from line content.
type ClockConvention int

const (
	// AssumeUTC interprets zone-less fields as UTC. Default for all sources.
	AssumeUTC ClockConvention = iota
	// AssumeServerLocal interprets zone-less fields as the backend host's
	// wall-clock time, resolved through ServerTimezone.
	AssumeServerLocal
)

// ServerTimezone describes the backend host's civil timezone relative to UTC.
// Fetched once per session from the status endpoint and cached.
type ServerTimezone struct {
	OffsetHours float64 `json:"offset_hours"`
	Name        string  `json:"name"`
}

// Location builds a fixed *time.Location from the descriptor.
func (tz ServerTimezone) Location() *time.Location {
	name := tz.Name
	if name == "" {
		name = "server"
	}
	return time.FixedZone(name, int(tz.OffsetHours*3600))
}
