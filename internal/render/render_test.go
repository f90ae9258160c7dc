package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/logdeck/internal/model"
)

func TestLabelFixedWidth(t *testing.T) {
	for _, src := range []string{"api", "nginx", "a-rather-long-source-name", ""} {
		if got := len(Label(src)); got != 10 {
			t.Errorf("Label(%q) width = %d, want 10", src, got)
		}
	}
	if got := Label("api"); got != "api       " {
		t.Errorf("Label(api) = %q", got)
	}
	if got := Label("a-rather-long-source-name"); got != "a-rather-l" {
		t.Errorf("truncated label = %q", got)
	}
}

func TestStampDisplayLocal(t *testing.T) {
	instant := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC)
	line := model.LogLine{Source: "api", Instant: &instant}

	paris := time.FixedZone("UTC+1", 3600)
	if got := Stamp(line, paris); got != "07:14:48" {
		t.Errorf("Stamp = %q, want 07:14:48", got)
	}

	if got := Stamp(model.LogLine{Source: "api"}, paris); got != "--:--:--" {
		t.Errorf("untimed Stamp = %q", got)
	}
}

func TestTextRenderContainsParts(t *testing.T) {
	var buf bytes.Buffer
	r := NewText(&buf, time.UTC)

	instant := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC)
	err := r.Render(model.LogLine{Source: "worker", Raw: "ERROR boom", Instant: &instant})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"06:14:48", "worker", "ERROR boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestJSONRender(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSON(&buf, time.UTC)

	instant := time.Date(2025, 12, 6, 6, 14, 48, 0, time.UTC)
	if err := r.Render(model.LogLine{Source: "api", Raw: "WARN slow", Instant: &instant}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := r.Render(model.LogLine{Source: "api", Raw: "no marker"}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	dec := json.NewDecoder(&buf)
	var first, second map[string]string
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if first["level"] != "warn" || first["time"] != "2025-12-06T06:14:48Z" {
		t.Errorf("first = %v", first)
	}
	if _, ok := second["time"]; ok {
		t.Errorf("untimed line must omit time, got %v", second)
	}
	if second["level"] != "unknown" {
		t.Errorf("second level = %q", second["level"])
	}
}
