// Package pipeline connects sources, the request gate, timestamp
// resolution, the merge engine, and the filter pipeline into the flow
// behind the log view: request → fetch → annotate → merge → filter.
package pipeline

import (
	"context"
	"sync"

	"github.com/crimson-sun/logdeck/internal/diag"
	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/gate"
	"github.com/crimson-sun/logdeck/internal/merge"
	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/source"
	"github.com/crimson-sun/logdeck/internal/timestamp"
)

// Result is one merged, filtered snapshot.
type Result struct {
	Lines []model.LogLine

	// Warnings carries recoverable problems (e.g. an invalid regex filter)
	// that did not stop the pass.
	Warnings []string

	// Throttled lists sources whose fetch was suppressed by the request
	// gate. Not errors: the caller keeps showing its previous view.
	Throttled []string

	// SourceErrors maps a source id to its fetch failure. A failing source
	// never aborts the snapshot; the remaining sources are still merged.
	SourceErrors map[string]error
}

// Pipeline is constructed once with its collaborators and reused for every
// snapshot request.
type Pipeline struct {
	sources    []source.Source
	gate       *gate.Gate
	extractor  *timestamp.Extractor
	normalizer *timestamp.Normalizer
	ring       *diag.Ring
}

// New creates a Pipeline over the given sources.
func New(sources []source.Source, g *gate.Gate, n *timestamp.Normalizer, ring *diag.Ring) *Pipeline {
	return &Pipeline{
		sources:    sources,
		gate:       g,
		extractor:  timestamp.NewExtractor(),
		normalizer: n,
		ring:       ring,
	}
}

// Annotate resolves a line's timestamp in place: extraction, then
// normalization under the source's clock convention.
func (p *Pipeline) Annotate(line model.LogLine) model.LogLine {
	line.Format = p.extractor.Extract(line.Raw)
	line.Instant = p.normalizer.Normalize(line.Format, line.Source)
	return line
}

// Snapshot fetches every source through the gate, annotates and merges the
// lines, and applies the filter criteria. force bypasses throttle windows.
func (p *Pipeline) Snapshot(ctx context.Context, maxLines int, criteria filter.Criteria, force bool) Result {
	type fetched struct {
		id        string
		lines     []model.LogLine
		throttled bool
		err       error
	}

	results := make([]fetched, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			v, throttled, err := p.gate.Do(ctx, "logs:"+src.ID(), force, func(ctx context.Context) (any, error) {
				return src.Fetch(ctx, maxLines)
			})
			f := fetched{id: src.ID(), throttled: throttled, err: err}
			if err == nil && !throttled {
				f.lines, _ = v.([]model.LogLine)
			}
			results[i] = f
		}(i, src)
	}
	wg.Wait()

	res := Result{}
	var sequences [][]model.LogLine
	for _, f := range results {
		switch {
		case f.err != nil:
			if res.SourceErrors == nil {
				res.SourceErrors = make(map[string]error)
			}
			res.SourceErrors[f.id] = f.err
			p.ring.Error("fetch", "source fetch failed",
				map[string]any{"source": f.id, "error": f.err.Error()})
		case f.throttled:
			res.Throttled = append(res.Throttled, f.id)
		default:
			lines := make([]model.LogLine, len(f.lines))
			for i, line := range f.lines {
				lines[i] = p.Annotate(line)
			}
			sequences = append(sequences, lines)
		}
	}

	merged := merge.Merge(sequences...)
	res.Lines, res.Warnings = filter.Apply(merged, criteria)
	for _, w := range res.Warnings {
		p.ring.Warn("filter", w, nil)
	}

	p.ring.Info("fetch", "snapshot complete", map[string]any{
		"sources":   len(p.sources),
		"lines":     len(res.Lines),
		"throttled": len(res.Throttled),
		"failed":    len(res.SourceErrors),
	})
	return res
}
