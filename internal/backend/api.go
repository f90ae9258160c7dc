package backend

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/model"
)

// LogSnapshot is the backend's response to a bounded log read: the raw text
// plus line-count metadata.
type LogSnapshot struct {
	Source     string `json:"source"`
	Text       string `json:"text"`
	Lines      int    `json:"lines"`
	TotalLines int    `json:"total_lines"`
}

// Sample is one point of a metric's history.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Status is the general status payload; only the timezone descriptor is
// consumed here.
type Status struct {
	Hostname string               `json:"hostname"`
	Version  string               `json:"version"`
	Timezone model.ServerTimezone `json:"timezone"`
}

// Logs reads up to maxLines of raw log text for one named source.
func (c *Client) Logs(ctx context.Context, source string, maxLines int) (LogSnapshot, error) {
	q := url.Values{}
	q.Set("lines", strconv.Itoa(maxLines))

	var snap LogSnapshot
	if err := c.GetJSON(ctx, "/api/logs/"+url.PathEscape(source), q, &snap); err != nil {
		return LogSnapshot{}, err
	}
	if snap.Source == "" {
		snap.Source = source
	}
	return snap, nil
}

// SplitLines converts a snapshot's text into per-source LogLines, assigning
// sequence indexes in original output order.
func (s LogSnapshot) SplitLines() []model.LogLine {
	text := strings.TrimRight(s.Text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]model.LogLine, len(raw))
	for i, line := range raw {
		out[i] = model.LogLine{Source: s.Source, Raw: line, Seq: i}
	}
	return out
}

// MetricHistory reads a named metric's samples over the given window.
func (c *Client) MetricHistory(ctx context.Context, metric string, from, to time.Time) ([]Sample, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var resp struct {
		Samples []Sample `json:"samples"`
	}
	if err := c.GetJSON(ctx, "/api/metrics/"+url.PathEscape(metric), q, &resp); err != nil {
		return nil, err
	}
	return resp.Samples, nil
}

// Status fetches the general status payload. The timezone descriptor inside
// it is needed once per session to resolve server-local timestamps.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := c.GetJSON(ctx, "/api/status", nil, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// PushDiagnostics submits an exported diagnostic payload for archival.
func (c *Client) PushDiagnostics(ctx context.Context, export diag.Export) error {
	return c.PostJSON(ctx, "/api/diagnostics", export, nil)
}

// TailURL is the websocket address of the live-tail push channel.
func (c *Client) TailURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/logs/tail"
}

// Token exposes the bearer token for transports that cannot reuse the HTTP
// client, such as the websocket dial.
func (c *Client) Token() string { return c.token }
