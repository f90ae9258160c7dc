package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/crimson-sun/logdeck/internal/backend"
	"github.com/crimson-sun/logdeck/internal/config"
	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/gate"
	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/pipeline"
	"github.com/crimson-sun/logdeck/internal/source"
	"github.com/crimson-sun/logdeck/internal/source/file"
	"github.com/crimson-sun/logdeck/internal/timestamp"
)

// app bundles the collaborators every subcommand needs.
type app struct {
	cfg      config.Config
	client   *backend.Client
	ring     *diag.Ring
	flusher  *diag.Flusher
	pipeline *pipeline.Pipeline
	loc      *time.Location
}

// newApp builds the aggregation stack from configuration. The backend's
// reported timezone drives both bare-timestamp interpretation and display
// stamps; when the status call fails we fall back to UTC and carry on.
func newApp(ctx context.Context, cfg config.Config) *app {
	client := backend.New(cfg.Backend.URL, cfg.Backend.Token)
	ring := diag.NewRing(cfg.Diag.Capacity)

	serverTZ := model.ServerTimezone{Name: "UTC"}
	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if status, err := client.Status(statusCtx); err != nil {
		slog.Warn("backend status unavailable, assuming UTC", "error", err)
		ring.Warn("startup", "backend status unavailable", map[string]any{"error": err.Error()})
	} else {
		serverTZ = status.Timezone
	}

	var sources []source.Source
	for _, name := range cfg.Sources.Names {
		sources = append(sources, source.NewBackend(name, client))
	}
	for id, globs := range cfg.Sources.FileGlobs {
		sources = append(sources, file.New(id, globs...))
	}

	g := gate.New()
	if cfg.Fetch.Throttle > 0 {
		for _, src := range sources {
			g.SetThrottle("logs:"+src.ID(), cfg.Fetch.Throttle)
		}
	}

	normalizer := timestamp.NewNormalizer(cfg.Sources.Conventions(), serverTZ)

	a := &app{
		cfg:      cfg,
		client:   client,
		ring:     ring,
		pipeline: pipeline.New(sources, g, normalizer, ring),
		loc:      serverTZ.Location(),
	}

	if cfg.Diag.CollectorURL != "" {
		a.flusher = diag.NewFlusher(ring, cfg.Diag.CollectorURL, diag.WithInterval(cfg.Diag.FlushInterval))
		a.flusher.Start()
	}
	return a
}

// close flushes pending diagnostics. Safe to call when no collector is
// configured.
func (a *app) close() {
	if a.flusher != nil {
		a.flusher.Close()
	}
}
