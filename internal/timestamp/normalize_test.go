package timestamp

import (
	"testing"
	"time"

	"github.com/crimson-sun/logdeck/internal/model"
)

func testNormalizer() *Normalizer {
	n := NewNormalizer(
		map[string]model.ClockConvention{"nginx": model.AssumeServerLocal},
		model.ServerTimezone{OffsetHours: 2, Name: "CEST"},
	)
	// Pin "now" so bare-time reconstruction is deterministic.
	n.now = func() time.Time {
		return time.Date(2025, 12, 6, 10, 0, 0, 0, time.UTC)
	}
	return n
}

func normalize(t *testing.T, n *Normalizer, kind model.FormatKind, text, source string) time.Time {
	t.Helper()
	got := n.Normalize(model.TimestampMatch{Kind: kind, Text: text}, source)
	if got == nil {
		t.Fatalf("Normalize(%v, %q, %q) = nil, want instant", kind, text, source)
	}
	return *got
}

func TestNormalizeUTCZ(t *testing.T) {
	n := testNormalizer()
	want := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC)

	got := normalize(t, n, model.FormatUTCZ, "2025-12-06T06:14:48Z", "api")
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Space separator spelling resolves identically.
	got = normalize(t, n, model.FormatUTCZ, "2025-12-06 06:14:48Z", "api")
	if !got.Equal(want) {
		t.Fatalf("space separator: got %v, want %v", got, want)
	}
}

func TestNormalizeTruncatesLongFractions(t *testing.T) {
	n := testNormalizer()

	// Seven fractional digits would overflow millisecond precision; the
	// excess is dropped rather than failing the parse.
	got := normalize(t, n, model.FormatUTCZ, "2025-12-06T06:14:48.1234567Z", "api")
	want := time.Date(2025, 12, 6, 6, 14, 48, 123_000_000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeExplicitOffset(t *testing.T) {
	n := testNormalizer()
	got := normalize(t, n, model.FormatOffset, "2025-12-06T08:14:48+02:00", "worker")
	want := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// The access-log form and the Z-suffixed form must agree on the instant.
func TestNormalizeApacheEquivalence(t *testing.T) {
	n := testNormalizer()
	apache := normalize(t, n, model.FormatApache, "06/Dec/2025:06:14:48 +0000", "nginx")
	iso := normalize(t, n, model.FormatUTCZ, "2025-12-06T06:14:48Z", "api")
	if !apache.Equal(iso) {
		t.Fatalf("apache %v != iso %v", apache, iso)
	}

	shifted := normalize(t, n, model.FormatApache, "06/Dec/2025:08:14:48 +0200", "nginx")
	if !shifted.Equal(iso) {
		t.Fatalf("offset apache %v != iso %v", shifted, iso)
	}
}

func TestNormalizeBareDateTimeByConvention(t *testing.T) {
	n := testNormalizer()

	// Default convention: fields are UTC.
	utc := normalize(t, n, model.FormatBareDateTime, "2025-12-06 06:14:48", "api")
	if want := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC); !utc.Equal(want) {
		t.Fatalf("AssumeUTC: got %v, want %v", utc, want)
	}

	// Server-local convention: fields are wall-clock at UTC+2.
	local := normalize(t, n, model.FormatBareDateTime, "2025-12-06 06:14:48", "nginx")
	if want := time.Date(2025, 12, 6, 4, 14, 48, 0, time.UTC); !local.Equal(want) {
		t.Fatalf("AssumeServerLocal: got %v, want %v", local, want)
	}
}

func TestNormalizeBareTime(t *testing.T) {
	n := testNormalizer()

	// Server-local source: combine with today's UTC date, shift by offset.
	got := normalize(t, n, model.FormatBareTime, "06:14:48", "nginx")
	want := time.Date(2025, 12, 6, 4, 14, 48, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// A bare time from a UTC-convention source is unresolvable.
	if r := n.Normalize(model.TimestampMatch{Kind: model.FormatBareTime, Text: "06:14:48"}, "api"); r != nil {
		t.Fatalf("expected nil for bare time on UTC source, got %v", *r)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := testNormalizer()
	m := model.TimestampMatch{Kind: model.FormatApache, Text: "06/Dec/2025:06:14:48 +0000"}

	a := n.Normalize(m, "nginx")
	b := n.Normalize(m, "nginx")
	if a == nil || b == nil || !a.Equal(*b) {
		t.Fatalf("normalization not idempotent: %v vs %v", a, b)
	}
}

func TestNormalizeMalformedYieldsNil(t *testing.T) {
	n := testNormalizer()
	cases := []model.TimestampMatch{
		{Kind: model.FormatNone},
		{Kind: model.FormatUTCZ, Text: "9999-99-99T99:99:99Z"},
		{Kind: model.FormatApache, Text: "99/Xxx/2025:06:14:48 +0000"},
		{Kind: model.FormatBareDateTime, Text: "not a date"},
	}
	for _, m := range cases {
		if got := n.Normalize(m, "api"); got != nil {
			t.Errorf("Normalize(%v) = %v, want nil", m, *got)
		}
	}
}
