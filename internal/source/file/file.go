// Package file reads log text from local files, for services whose logs are
// mounted into the dashboard host rather than served by the backend API.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Source aggregates the files matched by a set of glob patterns under one
// source id. Patterns may be recursive (e.g. /var/log/stack/**/*.log).
type Source struct {
	id       string
	patterns []string
}

// New creates a file Source.
func New(id string, patterns ...string) *Source {
	return &Source{id: id, patterns: patterns}
}

func (s *Source) ID() string { return s.id }

// Fetch reads the matched files and returns the last maxLines lines across
// them, files in path order, each file's lines in original order.
func (s *Source) Fetch(_ context.Context, maxLines int) ([]model.LogLine, error) {
	paths, err := s.expand()
	if err != nil {
		return nil, err
	}

	var raw []string
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			slog.Warn("file source: cannot open", "path", p, "error", err)
			continue
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			raw = append(raw, sc.Text())
		}
		f.Close()
	}

	if maxLines > 0 && len(raw) > maxLines {
		raw = raw[len(raw)-maxLines:]
	}

	out := make([]model.LogLine, len(raw))
	for i, line := range raw {
		out[i] = model.LogLine{Source: s.id, Raw: line, Seq: i}
	}
	return out, nil
}

// Tail watches the matched files and emits appended lines in arrival order.
// Rotation (remove/rename) re-arms the watch when the path reappears.
func (s *Source) Tail(ctx context.Context) (<-chan model.LogLine, error) {
	paths, err := s.expand()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("file source %s: no files match %v", s.id, s.patterns)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("file source %s: %w", s.id, err)
	}

	offsets := make(map[string]int64, len(paths))
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			slog.Warn("file source: cannot watch", "path", p, "error", err)
			continue
		}
		// Start at end of file; the tail only delivers new lines.
		if fi, err := os.Stat(p); err == nil {
			offsets[p] = fi.Size()
		}
	}

	ch := make(chan model.LogLine, 256)
	go func() {
		defer close(ch)
		defer fsw.Close()
		seq := 0

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				switch {
				case ev.Op&fsnotify.Write != 0:
					seq = s.drain(ctx, ev.Name, offsets, seq, ch)
				case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					// Rotation: re-arm if the path comes back.
					offsets[ev.Name] = 0
					if err := fsw.Add(ev.Name); err != nil {
						slog.Debug("file source: rewatch failed", "path", ev.Name, "error", err)
					}
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("file source: watch error", "source", s.id, "error", err)
			}
		}
	}()
	return ch, nil
}

// drain reads new complete lines from path starting at the stored offset.
func (s *Source) drain(ctx context.Context, path string, offsets map[string]int64, seq int, ch chan<- model.LogLine) int {
	f, err := os.Open(path)
	if err != nil {
		return seq
	}
	defer f.Close()

	off := offsets[path]
	if fi, err := f.Stat(); err == nil && fi.Size() < off {
		off = 0 // truncated
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return seq
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		off += int64(len(sc.Bytes())) + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		select {
		case ch <- model.LogLine{Source: s.id, Raw: line, Seq: seq}:
			seq++
		case <-ctx.Done():
			offsets[path] = off
			return seq
		}
	}
	offsets[path] = off
	return seq
}

// expand resolves the glob patterns to a sorted, de-duplicated path list.
func (s *Source) expand() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range s.patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("file source %s: bad pattern %q: %w", s.id, pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				paths = append(paths, abs)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}
