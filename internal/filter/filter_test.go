package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/logdeck/internal/model"
)

func lines(raws ...string) []model.LogLine {
	out := make([]model.LogLine, len(raws))
	base := time.Date(2025, 12, 6, 6, 0, 0, 0, time.UTC)
	for i, raw := range raws {
		t := base.Add(time.Duration(i) * time.Second)
		out[i] = model.LogLine{Source: "api", Raw: raw, Instant: &t, Seq: i}
	}
	return out
}

func raws(in []model.LogLine) []string {
	out := make([]string, len(in))
	for i, l := range in {
		out[i] = l.Raw
	}
	return out
}

func TestApplyEmptyCriteriaKeepsEverything(t *testing.T) {
	in := lines("a", "b", "c")
	out, warnings := Apply(in, Criteria{})
	require.Empty(t, warnings)
	assert.Equal(t, []string{"a", "b", "c"}, raws(out))
}

func TestApplyTimeRange(t *testing.T) {
	in := lines("t0", "t1", "t2", "t3")
	from := *in[1].Instant
	to := *in[2].Instant

	// An untimed line always survives the time stage.
	in = append(in, model.LogLine{Source: "api", Raw: "untimed", Seq: 4})

	out, _ := Apply(in, Criteria{From: &from, To: &to})
	assert.Equal(t, []string{"t1", "t2", "untimed"}, raws(out))
}

func TestApplyTextQuery(t *testing.T) {
	in := lines("Connection Reset", "listening on :8080", "connection closed")

	out, _ := Apply(in, Criteria{TextQuery: "connection"})
	assert.Equal(t, []string{"Connection Reset", "connection closed"}, raws(out))

	out, _ = Apply(in, Criteria{TextQuery: "connection", CaseSensitive: true})
	assert.Equal(t, []string{"connection closed"}, raws(out))
}

func TestApplyRegexQuery(t *testing.T) {
	in := lines("GET /api/v1/users 200", "GET /healthz 200", "POST /api/v1/users 500")

	out, warnings := Apply(in, Criteria{RegexQuery: `(GET|POST) /api/.* 5\d\d`})
	require.Empty(t, warnings)
	assert.Equal(t, []string{"POST /api/v1/users 500"}, raws(out))
}

// An invalid regex is a recoverable warning: the sub-stage is skipped and the
// remaining stages still run.
func TestApplyInvalidRegexDegrades(t *testing.T) {
	in := lines("[DEBUG] cache warm", "ERROR boom", "INFO ok")

	out, warnings := Apply(in, Criteria{
		RegexQuery: "(unterminated",
		HideDebug:  true,
	})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "invalid regex")
	assert.Equal(t, []string{"ERROR boom", "INFO ok"}, raws(out))
}

func TestApplyExclusions(t *testing.T) {
	in := lines(
		"[DEBUG] verbose detail",
		"[INFO] started",
		"GET /healthz 200",
		"ping from upstream",
		"ERROR disk full",
		"worker heartbeat-probe ok",
	)

	out, _ := Apply(in, Criteria{
		HideDebug:         true,
		HidePings:         true,
		HideHealthChecks:  true,
		ExclusionPatterns: []string{"HEARTBEAT"},
	})
	assert.Equal(t, []string{"[INFO] started", "ERROR disk full"}, raws(out))
}

func TestApplyLevelSet(t *testing.T) {
	in := lines(
		"ERROR boom",
		"WARN slow query",
		"INFO started",
		"DEBUG cache state",
		"no marker at all",
	)

	out, _ := Apply(in, Criteria{Levels: map[model.Level]bool{
		model.LevelError: true,
		model.LevelWarn:  true,
	}})
	// Unknown always passes the level stage.
	assert.Equal(t, []string{"ERROR boom", "WARN slow query", "no marker at all"}, raws(out))
}

func TestApplyIdempotent(t *testing.T) {
	in := lines(
		"ERROR boom",
		"[DEBUG] noise",
		"INFO request served",
		"GET /healthz 200",
	)
	c := Criteria{
		TextQuery: "o",
		HideDebug: true,
		Levels:    map[model.Level]bool{model.LevelError: true, model.LevelInfo: true},
	}

	once, _ := Apply(in, c)
	twice, _ := Apply(once, c)
	assert.Equal(t, raws(once), raws(twice))
}

func TestApplyNeverReorders(t *testing.T) {
	in := lines("b", "a", "c", "a")
	out, _ := Apply(in, Criteria{TextQuery: "a"})
	require.Len(t, out, 2)
	assert.True(t, out[0].Seq < out[1].Seq, "filter must preserve order")
}

func TestClassify(t *testing.T) {
	cases := map[string]model.Level{
		"ERROR: it broke":          model.LevelError,
		"fatal signal received":    model.LevelError,
		"WARN high memory":         model.LevelWarn,
		"[debug] probing":          model.LevelDebug,
		"notice: reloading":        model.LevelInfo,
		"plain text line":          model.LevelUnknown,
		"":                         model.LevelUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Classify(raw), "line %q", raw)
	}
}

func TestPreset(t *testing.T) {
	now := time.Date(2025, 12, 6, 12, 0, 0, 0, time.UTC)

	from, to := Preset("1h", now)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, now.Add(-time.Hour), *from)
	assert.Equal(t, now, *to)

	from, to = Preset("bogus", now)
	assert.Nil(t, from)
	assert.Nil(t, to)
}
