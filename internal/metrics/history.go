// Package metrics fetches metric history for dashboard chart elements.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crimson-sun/logdeck/internal/backend"
	"github.com/crimson-sun/logdeck/internal/diag"
)

// HistoryClient is the slice of the backend API this fetcher needs.
type HistoryClient interface {
	MetricHistory(ctx context.Context, metric string, from, to time.Time) ([]backend.Sample, error)
}

// token identifies one registered fetch; pointer identity distinguishes a
// fetch from its successor for the same element.
type token struct {
	cancel context.CancelFunc
}

// Fetcher serializes history fetches per UI element: starting a fetch for an
// element cancels any outstanding fetch for that same element, and a
// cancelled fetch's late result is discarded rather than applied. Stale data
// can therefore never overwrite fresh data, and a cancelled fetch is "no
// update", not an error.
type Fetcher struct {
	client HistoryClient
	ring   *diag.Ring

	mu      sync.Mutex
	pending map[string]*token
}

// NewFetcher creates a Fetcher recording its events in ring.
func NewFetcher(client HistoryClient, ring *diag.Ring) *Fetcher {
	return &Fetcher{
		client:  client,
		ring:    ring,
		pending: make(map[string]*token),
	}
}

// Fetch retrieves metric history for the chart element identified by
// element, delivering the samples through apply. When the fetch is
// superseded by a newer one or cancelled, apply is not invoked and Fetch
// returns nil. Only genuine network failures are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, element, metric string, from, to time.Time, apply func([]backend.Sample)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tok := &token{cancel: cancel}

	f.mu.Lock()
	if prev, ok := f.pending[element]; ok {
		prev.cancel() // newer fetch wins
	}
	f.pending[element] = tok
	f.mu.Unlock()

	samples, err := f.client.MetricHistory(ctx, metric, from, to)

	f.mu.Lock()
	current := f.pending[element] == tok
	if current {
		delete(f.pending, element)
	}
	f.mu.Unlock()

	if !current || errors.Is(err, context.Canceled) {
		// Late result of a superseded or cancelled fetch: discarded, not an
		// error to report.
		f.ring.Info("metrics", "stale fetch discarded",
			map[string]any{"element": element, "metric": metric})
		return nil
	}
	if err != nil {
		return err
	}
	apply(samples)
	return nil
}

// CancelAll cancels every outstanding fetch, e.g. on page teardown.
func (f *Fetcher) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for element, tok := range f.pending {
		tok.cancel()
		delete(f.pending, element)
	}
}
