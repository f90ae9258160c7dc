// Package server exposes the merged log view over HTTP for the dashboard
// frontend: a snapshot API, a diagnostics dump, and a live WebSocket feed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/logdeck/internal/backend"
	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/metrics"
	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/pipeline"
	"github.com/crimson-sun/logdeck/internal/tail"
)

const (
	diagRecentMax = 200
	diagErrorMax  = 100
)

// Server holds the Gin engine and the aggregation collaborators.
type Server struct {
	engine   *gin.Engine
	pipeline *pipeline.Pipeline
	tailer   *tail.Tail       // nil when live tail is disabled
	history  *metrics.Fetcher // nil when no backend metrics are available
	ring     *diag.Ring
	loc      *time.Location
	maxLines int
}

// WithHistory enables the metric history endpoint.
func WithHistory(f *metrics.Fetcher) func(*Server) {
	return func(s *Server) { s.history = f }
}

// New creates the dashboard API server. loc is the display timezone used
// for formatted stamps.
func New(p *pipeline.Pipeline, t *tail.Tail, ring *diag.Ring, loc *time.Location, maxLines int, opts ...func(*Server)) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false

	s := &Server{
		engine:   engine,
		pipeline: p,
		tailer:   t,
		ring:     ring,
		loc:      loc,
		maxLines: maxLines,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Router exposes the engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"events": s.ring.Len(),
		})
	})

	s.engine.GET("/api/logs", s.handleLogs)

	s.engine.GET("/api/diagnostics", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.ring.Snapshot(diagRecentMax, diagErrorMax))
	})

	s.engine.GET("/api/metrics/:metric", s.handleMetricHistory)

	s.engine.GET("/ws", s.handleWebSocket)
}

// handleMetricHistory proxies one range query for a chart element. The
// element parameter scopes latest-wins cancellation: a new request for the
// same element supersedes the previous one.
func (s *Server) handleMetricHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metric history disabled"})
		return
	}

	metric := c.Param("metric")
	element := c.DefaultQuery("element", metric)

	from, err := parseTime(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	now := time.Now()
	if to == nil {
		to = &now
	}
	if from == nil {
		h := now.Add(-time.Hour)
		from = &h
	}

	var (
		samples []backend.Sample
		applied bool
	)
	fetchErr := s.history.Fetch(c.Request.Context(), element, metric, *from, *to, func(got []backend.Sample) {
		samples = got
		applied = true
	})
	if fetchErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
		return
	}
	if !applied {
		// Superseded by a newer request for the same element.
		c.JSON(http.StatusOK, gin.H{"metric": metric, "samples": []backend.Sample{}, "stale": true})
		return
	}
	if samples == nil {
		samples = []backend.Sample{}
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "samples": samples})
}

// wireLine is the JSON shape of one log line in API responses.
type wireLine struct {
	Source string `json:"source"`
	Time   string `json:"time,omitempty"`
	Stamp  string `json:"stamp"`
	Level  string `json:"level"`
	Text   string `json:"text"`
}

func (s *Server) handleLogs(c *gin.Context) {
	criteria, err := parseCriteria(c, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxLines := s.maxLines
	if v := c.Query("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxLines = n
		}
	}
	force := c.Query("force") == "1" || c.Query("force") == "true"

	res := s.pipeline.Snapshot(c.Request.Context(), maxLines, criteria, force)

	lines := make([]wireLine, 0, len(res.Lines))
	for _, line := range res.Lines {
		wl := wireLine{
			Source: line.Source,
			Level:  string(filter.Classify(line.Raw)),
			Text:   line.Raw,
			Stamp:  stamp(line, s.loc),
		}
		if line.Instant != nil {
			wl.Time = line.Instant.Format(time.RFC3339Nano)
		}
		lines = append(lines, wl)
	}

	errs := make(map[string]string, len(res.SourceErrors))
	for id, e := range res.SourceErrors {
		errs[id] = e.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"lines":     lines,
		"warnings":  res.Warnings,
		"throttled": res.Throttled,
		"errors":    errs,
	})
}

func stamp(line model.LogLine, loc *time.Location) string {
	if line.Instant == nil {
		return "--:--:--"
	}
	return line.Instant.In(loc).Format("15:04:05")
}

// parseCriteria maps query parameters onto filter criteria. A named preset
// wins over explicit from/to bounds.
func parseCriteria(c *gin.Context, now time.Time) (filter.Criteria, error) {
	criteria := filter.Criteria{
		TextQuery:     c.Query("q"),
		RegexQuery:    c.Query("regex"),
		CaseSensitive: c.Query("case") == "1" || c.Query("case") == "true",
	}

	if preset := c.Query("preset"); preset != "" {
		criteria.From, criteria.To = filter.Preset(preset, now)
		if criteria.From == nil {
			return criteria, fmt.Errorf("unknown time preset %q", preset)
		}
	} else {
		var err error
		if criteria.From, err = parseTime(c.Query("from")); err != nil {
			return criteria, err
		}
		if criteria.To, err = parseTime(c.Query("to")); err != nil {
			return criteria, err
		}
	}

	if v := c.Query("levels"); v != "" {
		criteria.Levels = make(map[model.Level]bool)
		for _, name := range strings.Split(v, ",") {
			criteria.Levels[model.ParseLevel(strings.TrimSpace(name))] = true
		}
	}

	if v := c.Query("exclude"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				criteria.ExclusionPatterns = append(criteria.ExclusionPatterns, p)
			}
		}
	}

	for _, h := range strings.Split(c.Query("hide"), ",") {
		switch strings.TrimSpace(h) {
		case "debug":
			criteria.HideDebug = true
		case "info":
			criteria.HideInfo = true
		case "pings":
			criteria.HidePings = true
		case "health":
			criteria.HideHealthChecks = true
		}
	}

	return criteria, nil
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Start serves on addr until ctx is cancelled, then shuts down with a
// short grace period.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
