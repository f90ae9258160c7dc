// Package gate wraps outbound read calls to the backend, collapsing duplicate
// in-flight requests and throttling repeat calls to the same endpoint.
//
// Mutating calls never go through the gate; callers issue writes directly.
package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fn performs the actual network call guarded by the gate.
type Fn func(ctx context.Context) (any, error)

// entry is the per-endpoint bookkeeping record. Created lazily on first use
// and kept for the life of the gate.
type entry struct {
	lastCall time.Time     // recorded when the call is issued
	window   time.Duration // 0 means no throttling
	calls    int           // network calls actually issued (joins and throttles excluded)
}

// outcome is what one gate pass produced: either the call's value or the
// throttled sentinel. It travels through singleflight so joined callers see
// the identical result.
type outcome struct {
	v         any
	throttled bool
}

// Gate is constructed once at application start and shared by reference, so
// every component sees the same in-flight registry and throttle state.
type Gate struct {
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New creates an empty Gate.
func New() *Gate {
	return &Gate{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetThrottle configures the minimum spacing between issued calls for one
// endpoint key. A zero window disables throttling for that key.
func (g *Gate) SetThrottle(key string, window time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entry(key).window = window
}

// Calls reports how many network calls have actually been issued for a key.
func (g *Gate) Calls(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entry(key).calls
}

// Do runs fn for the given endpoint key subject to dedup and throttling.
//
// If a call for key is already in flight, the caller joins it and observes
// the identical outcome; no second network call is issued. Otherwise, if a
// throttle window is configured and has not yet elapsed since the last
// issued call (and force is false), Do returns throttled == true without
// calling fn. A throttled result is not an error; callers must check for it
// before treating "no data" as a failure.
//
// The call time is recorded the moment the call is issued, and the in-flight
// registration is cleared as soon as fn settles, success or failure. A
// failing fn propagates its error to every joined caller.
//
// The throttle check runs inside the singleflight function, so checking the
// window, recording the call, and registering the call as in flight are one
// atomic step: a caller either joins the pending call or evaluates the
// window itself, never neither.
func (g *Gate) Do(ctx context.Context, key string, force bool, fn Fn) (any, bool, error) {
	for {
		v, err, _ := g.group.Do(key, func() (any, error) {
			g.mu.Lock()
			e := g.entry(key)
			if !force && e.window > 0 && !e.lastCall.IsZero() && g.now().Sub(e.lastCall) < e.window {
				g.mu.Unlock()
				return outcome{throttled: true}, nil
			}
			e.lastCall = g.now()
			e.calls++
			g.mu.Unlock()

			inner, err := fn(ctx)
			return outcome{v: inner}, err
		})
		if err != nil {
			return nil, false, err
		}
		o := v.(outcome)
		if o.throttled && force {
			// Joined another caller's throttled pass; re-enter and issue
			// the call. A forced pass itself never returns throttled, so
			// this retries at most against instantaneous window checks.
			continue
		}
		return o.v, o.throttled, nil
	}
}

// entry returns the record for key, creating it on first use.
// Caller must hold g.mu.
func (g *Gate) entry(key string) *entry {
	e, ok := g.entries[key]
	if !ok {
		e = &entry{}
		g.entries[key] = e
	}
	return e
}
