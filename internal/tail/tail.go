// Package tail consumes the backend's persistent push channel and fans
// incremental log lines out to subscribers.
//
// Lines are appended strictly in arrival order and never re-sorted, so
// cross-source ordering in live mode is best effort; the merged snapshot
// view is the place for exact chronology.
package tail

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/model"
)

const (
	defaultRetain    = 2000
	subscriberBuffer = 256
	reconnectDelay   = 2 * time.Second
)

// Message is one incremental line as delivered by the push channel.
type Message struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Option configures a Tail.
type Option func(*Tail)

// WithRetain bounds the rolling window of retained lines. Default: 2000.
func WithRetain(n int) Option {
	return func(t *Tail) { t.retain = n }
}

// WithAuthToken sends a Bearer token on the websocket handshake.
func WithAuthToken(token string) Option {
	return func(t *Tail) {
		if token != "" {
			t.header = http.Header{"Authorization": {"Bearer " + token}}
		}
	}
}

// Tail holds a session-lifetime rolling window of pushed lines and
// broadcasts each arrival to subscribers. Slow subscribers drop lines
// rather than stalling the stream.
type Tail struct {
	url    string
	header http.Header
	retain int
	ring   *diag.Ring

	mu      sync.RWMutex
	window  []model.LogLine
	subs    []chan model.LogLine
	seq     map[string]int
	dropped int64
}

// New creates a Tail for the given websocket URL. Events about the tail's
// own behavior are recorded in ring.
func New(url string, ring *diag.Ring, opts ...Option) *Tail {
	t := &Tail{
		url:    url,
		retain: defaultRetain,
		ring:   ring,
		seq:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run dials the push channel and consumes it until ctx is cancelled,
// redialing after transient failures. Subscriber channels are closed on
// return.
func (t *Tail) Run(ctx context.Context) error {
	defer t.closeSubs()

	for {
		if err := t.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.ring.Warn("tail", "push channel dropped, reconnecting", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
}

func (t *Tail) consume(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	t.ring.Info("tail", "push channel connected", nil)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		t.append(msg)
	}
}

// append records an arrived line and broadcasts it. Arrival order only.
func (t *Tail) append(msg Message) {
	t.mu.Lock()
	line := model.LogLine{
		Source: msg.Source,
		Raw:    msg.Text,
		Seq:    t.seq[msg.Source],
	}
	t.seq[msg.Source]++

	t.window = append(t.window, line)
	if t.retain > 0 && len(t.window) > t.retain {
		t.window = t.window[len(t.window)-t.retain:]
	}

	// Fan out under the lock: sends never block, and Unsubscribe can then
	// never close a channel mid-send.
	for _, ch := range t.subs {
		select {
		case ch <- line:
		default:
			t.dropped++
			slog.Debug("tail: dropped line for slow subscriber", "total_dropped", t.dropped)
		}
	}
	t.mu.Unlock()
}

// Subscribe returns a buffered channel receiving every subsequent arrival.
// Callers must pair it with Unsubscribe when they stop reading, or the
// registration lives for the rest of the session.
func (t *Tail) Subscribe() <-chan model.LogLine {
	ch := make(chan model.LogLine, subscriberBuffer)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Subscribe and closes it.
// Unknown or already-removed channels are a no-op.
func (t *Tail) Unsubscribe(ch <-chan model.LogLine) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, sub := range t.subs {
		if sub == ch {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Snapshot copies the current rolling window.
func (t *Tail) Snapshot() []model.LogLine {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.LogLine, len(t.window))
	copy(out, t.window)
	return out
}

// Dropped reports lines dropped for slow subscribers.
func (t *Tail) Dropped() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped
}

func (t *Tail) closeSubs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}
