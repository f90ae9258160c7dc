// Package render turns merged log lines into display text: a fixed-width
// source label, a display-local timestamp, and severity coloring for
// terminals.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/model"
)

const sourceLabelWidth = 10

var (
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleInfo   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleDebug  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleNoTime = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
)

// Renderer writes formatted log lines to an output stream.
type Renderer interface {
	Render(line model.LogLine) error
}

// Label pads or truncates a source id to the fixed display width.
func Label(source string) string {
	if len(source) > sourceLabelWidth {
		return source[:sourceLabelWidth]
	}
	return fmt.Sprintf("%-*s", sourceLabelWidth, source)
}

// Stamp formats a line's instant in the display timezone, or a placeholder
// of matching width when the instant could not be recovered.
func Stamp(line model.LogLine, loc *time.Location) string {
	if line.Instant == nil {
		return "--:--:--"
	}
	return line.Instant.In(loc).Format("15:04:05")
}

// Text renders severity-colored terminal output.
type Text struct {
	w   io.Writer
	loc *time.Location
}

// NewText creates a terminal renderer displaying timestamps in loc.
func NewText(w io.Writer, loc *time.Location) *Text {
	if loc == nil {
		loc = time.Local
	}
	return &Text{w: w, loc: loc}
}

func (r *Text) Render(line model.LogLine) error {
	stamp := Stamp(line, r.loc)
	if line.Instant == nil {
		stamp = styleNoTime.Render(stamp)
	}
	body := styleFor(filter.Classify(line.Raw)).Render(line.Raw)
	_, err := fmt.Fprintf(r.w, "%s %s %s\n", stamp, styleSource.Render(Label(line.Source)), body)
	return err
}

func styleFor(level model.Level) lipgloss.Style {
	switch level {
	case model.LevelError:
		return styleError
	case model.LevelWarn:
		return styleWarn
	case model.LevelDebug:
		return styleDebug
	default:
		return styleInfo
	}
}

// JSON renders one JSON object per line, for piping.
type JSON struct {
	enc *json.Encoder
	loc *time.Location
}

// NewJSON creates a JSON-lines renderer.
func NewJSON(w io.Writer, loc *time.Location) *JSON {
	if loc == nil {
		loc = time.Local
	}
	return &JSON{enc: json.NewEncoder(w), loc: loc}
}

func (r *JSON) Render(line model.LogLine) error {
	rec := struct {
		Time   string `json:"time,omitempty"`
		Source string `json:"source"`
		Level  string `json:"level"`
		Text   string `json:"text"`
	}{
		Source: line.Source,
		Level:  string(filter.Classify(line.Raw)),
		Text:   line.Raw,
	}
	if line.Instant != nil {
		rec.Time = line.Instant.In(r.loc).Format(time.RFC3339)
	}
	return r.enc.Encode(rec)
}
