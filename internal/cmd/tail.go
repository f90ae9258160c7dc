package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/render"
	"github.com/crimson-sun/logdeck/internal/source/file"
	"github.com/crimson-sun/logdeck/internal/tail"
)

var tailRetain int

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream live log lines from all sources",
	Long: `Connect to the backend's live feed (and watch any configured file
sources) and print lines as they arrive. Lines are shown in arrival order;
press Ctrl-C to stop.`,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().IntVar(&tailRetain, "retain", 2000, "live lines kept in the in-memory window")
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	a := newApp(ctx, cfg)
	defer a.close()

	var renderer render.Renderer
	if strings.EqualFold(outputFmt, "json") {
		renderer = render.NewJSON(os.Stdout, a.loc)
	} else {
		renderer = render.NewText(os.Stdout, a.loc)
	}

	t := tail.New(a.client.TailURL(), a.ring,
		tail.WithRetain(tailRetain),
		tail.WithAuthToken(a.client.Token()))

	go func() {
		if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("live feed stopped", "error", err)
		}
	}()

	lines := make(chan model.LogLine, 256)
	sub := t.Subscribe()
	defer t.Unsubscribe(sub)
	go func() {
		for line := range sub {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	// File sources feed the same stream as the backend's push feed.
	for id, globs := range cfg.Sources.FileGlobs {
		src := file.New(id, globs...)
		ch, err := src.Tail(ctx)
		if err != nil {
			slog.Warn("file tail unavailable", "source", id, "error", err)
			a.ring.Warn("tail", "file tail unavailable", map[string]any{"source": id, "error": err.Error()})
			continue
		}
		go func() {
			for line := range ch {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			if err := renderer.Render(a.pipeline.Annotate(line)); err != nil {
				return err
			}
		}
	}
}
