package diag

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingAppendAndOrder(t *testing.T) {
	r := NewRing(10)
	r.Info("fetch", "first", nil)
	r.Warn("fetch", "second", nil)
	r.Error("merge", "third", nil)

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "third", entries[2].Message)
	assert.Equal(t, "error", entries[2].Level)
	assert.False(t, entries[0].Time.IsZero(), "append must stamp the entry")
}

// 5,001 appends into a 5,000-capacity ring: oldest entry evicted first,
// exactly the most recent 5,000 remain.
func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing(5000)
	for i := 0; i <= 5000; i++ {
		r.Info("loop", fmt.Sprintf("entry %d", i), nil)
	}

	require.Equal(t, 5000, r.Len())
	entries := r.Entries()
	assert.Equal(t, "entry 1", entries[0].Message, "entry 0 must be evicted")
	assert.Equal(t, "entry 5000", entries[4999].Message)
}

func TestRingWrapsRepeatedly(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 10; i++ {
		r.Info("loop", fmt.Sprintf("entry %d", i), nil)
	}
	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 7", entries[0].Message)
	assert.Equal(t, "entry 9", entries[2].Message)
}

func TestSnapshotLimitsAndErrorSubset(t *testing.T) {
	r := NewRing(100)
	for i := 0; i < 10; i++ {
		r.Info("fetch", fmt.Sprintf("info %d", i), nil)
	}
	r.Error("gate", "boom 1", nil)
	r.Error("gate", "boom 2", nil)

	snap := r.Snapshot(5, 1)
	require.NotEmpty(t, snap.Session)
	assert.Len(t, snap.Recent, 5)
	assert.Equal(t, "boom 2", snap.Recent[len(snap.Recent)-1].Message)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "boom 2", snap.Errors[0].Message)

	// Unbounded snapshot keeps everything.
	snap = r.Snapshot(0, 0)
	assert.Len(t, snap.Recent, 12)
	assert.Len(t, snap.Errors, 2)
}

func TestFlusherDelivers(t *testing.T) {
	var got atomic.Pointer[Export]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var e Export
		require.NoError(t, json.NewDecoder(req.Body).Decode(&e))
		got.Store(&e)
	}))
	defer srv.Close()

	r := NewRing(10)
	r.Error("gate", "boom", nil)

	f := NewFlusher(r, srv.URL, WithInterval(10*time.Millisecond))
	f.Start()
	require.Eventually(t, func() bool { return got.Load() != nil }, time.Second, 5*time.Millisecond)
	f.Close()

	e := got.Load()
	require.Len(t, e.Errors, 1)
	assert.Equal(t, "boom", e.Errors[0].Message)
}

// A collector outage is invisible: flushes fail silently and Close still
// returns promptly.
func TestFlusherSwallowsDeliveryFailure(t *testing.T) {
	r := NewRing(10)
	r.Info("fetch", "hello", nil)

	f := NewFlusher(r, "http://127.0.0.1:0/collect",
		WithInterval(5*time.Millisecond),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	f.Start()
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		f.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a dead collector")
	}

	// Entries are retained for the next attempt.
	assert.Equal(t, 1, r.Len())
}

// Close on a flusher that was never started must not wait on a loop that
// does not exist; the final bounded delivery still happens.
func TestFlusherCloseWithoutStart(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		delivered.Add(1)
	}))
	defer srv.Close()

	r := NewRing(10)
	r.Error("gate", "boom", nil)
	f := NewFlusher(r, srv.URL)

	done := make(chan struct{})
	go func() {
		f.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked without a running loop")
	}
	assert.Equal(t, int32(1), delivered.Load())
}

func TestFlusherNoURLIsNoop(t *testing.T) {
	r := NewRing(10)
	r.Info("fetch", "hello", nil)
	f := NewFlusher(r, "", WithInterval(5*time.Millisecond))
	f.Start()
	time.Sleep(20 * time.Millisecond)
	f.Close()
}
