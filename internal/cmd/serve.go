package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/logdeck/internal/metrics"
	"github.com/crimson-sun/logdeck/internal/server"
	"github.com/crimson-sun/logdeck/internal/tail"
)

var (
	serveAddr   string
	serveNoTail bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	Long: `Serve the merged log view over HTTP for the dashboard frontend:
snapshots on /api/logs, diagnostics on /api/diagnostics, and the live feed
re-broadcast on /ws.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8640", "listen address")
	serveCmd.Flags().BoolVar(&serveNoTail, "no-tail", false, "disable the live feed re-broadcast")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	a := newApp(ctx, cfg)
	defer a.close()

	var t *tail.Tail
	if !serveNoTail {
		t = tail.New(a.client.TailURL(), a.ring,
			tail.WithAuthToken(a.client.Token()))
		go func() {
			if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("live feed stopped", "error", err)
			}
		}()
	}

	s := server.New(a.pipeline, t, a.ring, a.loc, cfg.Fetch.MaxLines,
		server.WithHistory(metrics.NewFetcher(a.client, a.ring)))

	slog.Info("dashboard API listening", "addr", serveAddr)
	return s.Start(ctx, serveAddr)
}
