package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultFlushInterval = 60 * time.Second
	shutdownRecentMax    = 200
	shutdownErrorMax     = 100
	shutdownTimeout      = 2 * time.Second
)

// FlushOption configures a Flusher.
type FlushOption func(*Flusher)

// WithInterval sets the period between delivery attempts. Default: 60s.
func WithInterval(d time.Duration) FlushOption {
	return func(f *Flusher) { f.interval = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) FlushOption {
	return func(f *Flusher) { f.client = c }
}

// Flusher periodically POSTs ring snapshots to a collector endpoint.
// Delivery is best effort throughout: failures are swallowed, logged at
// debug, and simply retried on the next period. The tool's own telemetry
// must never surface errors to the user.
type Flusher struct {
	ring     *Ring
	url      string
	client   *http.Client
	interval time.Duration

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewFlusher creates a Flusher delivering to url. Call Start to begin the
// periodic loop.
func NewFlusher(ring *Ring, url string, opts ...FlushOption) *Flusher {
	f := &Flusher{
		ring:     ring,
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: defaultFlushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start runs the periodic flush loop in a goroutine. Start and Close are
// not safe to call concurrently with each other.
func (f *Flusher) Start() {
	f.started = true
	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stop:
				return
			case <-ticker.C:
				f.flush(context.Background(), 0, 0)
			}
		}
	}()
}

// Close stops the periodic loop and makes one final, bounded, best-effort
// delivery of the most recent and error-level entries. It never blocks
// longer than a short shutdown budget and never returns delivery errors.
func (f *Flusher) Close() {
	f.stopOnce.Do(func() {
		if f.started {
			close(f.stop)
			<-f.done
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		f.flush(ctx, shutdownRecentMax, shutdownErrorMax)
	})
}

// flush delivers one snapshot. All failures are swallowed.
func (f *Flusher) flush(ctx context.Context, recentMax, errorMax int) {
	if f.url == "" || f.ring.Len() == 0 {
		return
	}

	snap := f.ring.Snapshot(recentMax, errorMax)
	body, err := json.Marshal(snap)
	if err != nil {
		slog.Debug("diag flush: marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		slog.Debug("diag flush: bad request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Debug("diag flush: delivery failed", "error", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("diag flush: collector rejected payload", "status", resp.StatusCode)
	}
}
