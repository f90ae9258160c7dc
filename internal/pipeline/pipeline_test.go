package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/gate"
	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/source"
	"github.com/crimson-sun/logdeck/internal/timestamp"
)

// --- mocks ---

// mockSource serves pre-loaded raw lines, optionally failing.
type mockSource struct {
	id    string
	raw   []string
	err   error
	calls int
}

func (m *mockSource) ID() string { return m.id }

func (m *mockSource) Fetch(_ context.Context, _ int) ([]model.LogLine, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	lines := make([]model.LogLine, len(m.raw))
	for i, raw := range m.raw {
		lines[i] = model.LogLine{Source: m.id, Raw: raw, Seq: i}
	}
	return lines, nil
}

func newTestPipeline(sources ...source.Source) *Pipeline {
	n := timestamp.NewNormalizer(
		map[string]model.ClockConvention{"nginx": model.AssumeServerLocal},
		model.ServerTimezone{OffsetHours: 0, Name: "UTC"},
	)
	return New(sources, gate.New(), n, diag.NewRing(100))
}

// --- tests ---

// Three sources, five UTC-Z lines each, one per second, interleaved
// arbitrarily in fetch order: one 15-line sequence increasing by a second.
func TestSnapshotEndToEnd(t *testing.T) {
	base := time.Date(2025, 12, 6, 6, 0, 0, 0, time.UTC)
	var sources []source.Source
	for s, id := range []string{"worker", "api", "nginx"} {
		var raw []string
		for i := 0; i < 5; i++ {
			ts := base.Add(time.Duration(s+i*3) * time.Second)
			raw = append(raw, fmt.Sprintf("%s message from %s", ts.Format("2006-01-02T15:04:05Z"), id))
		}
		sources = append(sources, &mockSource{id: id, raw: raw})
	}

	p := newTestPipeline(sources...)
	res := p.Snapshot(context.Background(), 100, filter.Criteria{}, false)

	if len(res.SourceErrors) != 0 || len(res.Throttled) != 0 {
		t.Fatalf("unexpected errors/throttles: %+v", res)
	}
	if len(res.Lines) != 15 {
		t.Fatalf("merged %d lines, want 15", len(res.Lines))
	}
	for i, line := range res.Lines {
		if line.Instant == nil {
			t.Fatalf("line %d has no instant: %q", i, line.Raw)
		}
		want := base.Add(time.Duration(i) * time.Second)
		if !line.Instant.Equal(want) {
			t.Fatalf("line %d instant = %v, want %v", i, line.Instant, want)
		}
	}
}

func TestSnapshotAnnotatesByConvention(t *testing.T) {
	// nginx logs bare wall-clock time; with the server at UTC the bare
	// date-time resolves as written.
	src := &mockSource{id: "nginx", raw: []string{"2025-12-06 06:00:00 [notice] reload"}}
	p := newTestPipeline(src)

	res := p.Snapshot(context.Background(), 10, filter.Criteria{}, false)
	if len(res.Lines) != 1 {
		t.Fatalf("got %d lines", len(res.Lines))
	}
	line := res.Lines[0]
	if line.Format.Kind != model.FormatBareDateTime {
		t.Errorf("format = %v", line.Format.Kind)
	}
	want := time.Date(2025, 12, 6, 6, 0, 0, 0, time.UTC)
	if line.Instant == nil || !line.Instant.Equal(want) {
		t.Errorf("instant = %v, want %v", line.Instant, want)
	}
}

// A failing source never aborts the snapshot; the others still merge, and
// the failure is reported per source.
func TestSnapshotPartialFailure(t *testing.T) {
	boom := errors.New("connection refused")
	good := &mockSource{id: "api", raw: []string{"2025-12-06T06:00:00Z ok"}}
	bad := &mockSource{id: "worker", err: boom}

	p := newTestPipeline(good, bad)
	res := p.Snapshot(context.Background(), 10, filter.Criteria{}, false)

	if len(res.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(res.Lines))
	}
	if !errors.Is(res.SourceErrors["worker"], boom) {
		t.Fatalf("SourceErrors = %v", res.SourceErrors)
	}
}

func TestSnapshotThrottleSkipsSource(t *testing.T) {
	src := &mockSource{id: "api", raw: []string{"2025-12-06T06:00:00Z ok"}}
	g := gate.New()
	g.SetThrottle("logs:api", time.Minute)
	n := timestamp.NewNormalizer(nil, model.ServerTimezone{})
	p := New([]source.Source{src}, g, n, diag.NewRing(100))

	first := p.Snapshot(context.Background(), 10, filter.Criteria{}, false)
	if len(first.Lines) != 1 {
		t.Fatalf("first snapshot: %d lines", len(first.Lines))
	}

	second := p.Snapshot(context.Background(), 10, filter.Criteria{}, false)
	if len(second.Throttled) != 1 || second.Throttled[0] != "api" {
		t.Fatalf("Throttled = %v", second.Throttled)
	}
	if src.calls != 1 {
		t.Fatalf("source fetched %d times, want 1", src.calls)
	}

	// Forced refresh bypasses the window.
	third := p.Snapshot(context.Background(), 10, filter.Criteria{}, true)
	if len(third.Lines) != 1 || src.calls != 2 {
		t.Fatalf("forced snapshot: %d lines, %d calls", len(third.Lines), src.calls)
	}
}

func TestSnapshotFilterWarningsSurface(t *testing.T) {
	src := &mockSource{id: "api", raw: []string{"2025-12-06T06:00:00Z ERROR boom"}}
	p := newTestPipeline(src)

	res := p.Snapshot(context.Background(), 10, filter.Criteria{RegexQuery: "(unterminated"}, false)
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	// The broken regex stage is skipped; the line still flows through.
	if len(res.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(res.Lines))
	}
}
