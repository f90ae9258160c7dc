package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/logdeck/internal/filter"
	"github.com/crimson-sun/logdeck/internal/model"
	"github.com/crimson-sun/logdeck/internal/render"
)

var (
	logsSince   string
	logsFrom    string
	logsTo      string
	logsQuery   string
	logsRegex   string
	logsCase    bool
	logsLevels  []string
	logsExclude []string
	logsHide    []string
	logsLines   int
	logsForce   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print one merged snapshot of recent logs",
	Long: `Fetch recent lines from every configured source, merge them into a
single timeline, apply the filters, and print the result.

Examples:
  logdeck logs --since 1h
  logdeck logs --query "payment" --levels error,warn
  logdeck logs --regex "user_\d+" --hide debug,pings`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsSince, "since", "", "time preset: 15m, 1h, 6h, 24h")
	logsCmd.Flags().StringVar(&logsFrom, "from", "", "lower time bound (RFC 3339)")
	logsCmd.Flags().StringVar(&logsTo, "to", "", "upper time bound (RFC 3339)")
	logsCmd.Flags().StringVarP(&logsQuery, "query", "q", "", "substring to search for")
	logsCmd.Flags().StringVar(&logsRegex, "regex", "", "regular expression to search for")
	logsCmd.Flags().BoolVar(&logsCase, "case-sensitive", false, "match queries case-sensitively")
	logsCmd.Flags().StringSliceVar(&logsLevels, "levels", nil, "severities to keep ("+levelNames()+")")
	logsCmd.Flags().StringSliceVar(&logsExclude, "exclude", nil, "drop lines containing any of these substrings")
	logsCmd.Flags().StringSliceVar(&logsHide, "hide", nil, "built-in exclusions: debug, info, pings, health")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 0, "lines to request per source (default from config)")
	logsCmd.Flags().BoolVar(&logsForce, "force", false, "bypass the per-source throttle")
}

// levelNames joins the classifiable severities for flag help text.
func levelNames() string {
	names := make([]string, len(model.Levels))
	for i, l := range model.Levels {
		names[i] = string(l)
	}
	return strings.Join(names, ",")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := cmd.Context()

	a := newApp(ctx, cfg)
	defer a.close()

	criteria, err := buildCriteria(time.Now())
	if err != nil {
		return err
	}

	maxLines := cfg.Fetch.MaxLines
	if logsLines > 0 {
		maxLines = logsLines
	}

	res := a.pipeline.Snapshot(ctx, maxLines, criteria, logsForce)

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	for id, err := range res.SourceErrors {
		fmt.Fprintf(os.Stderr, "source %s failed: %v\n", id, err)
	}
	if len(res.Throttled) > 0 {
		fmt.Fprintf(os.Stderr, "throttled (use --force to bypass): %s\n", strings.Join(res.Throttled, ", "))
	}

	var renderer render.Renderer
	if strings.EqualFold(outputFmt, "json") {
		renderer = render.NewJSON(os.Stdout, a.loc)
	} else {
		renderer = render.NewText(os.Stdout, a.loc)
	}

	for _, line := range res.Lines {
		if err := renderer.Render(line); err != nil {
			return err
		}
	}
	return nil
}

// buildCriteria turns the logs flags into filter criteria. --since wins
// over explicit bounds.
func buildCriteria(now time.Time) (filter.Criteria, error) {
	criteria := filter.Criteria{
		TextQuery:         logsQuery,
		RegexQuery:        logsRegex,
		CaseSensitive:     logsCase,
		ExclusionPatterns: logsExclude,
	}

	if logsSince != "" {
		criteria.From, criteria.To = filter.Preset(logsSince, now)
		if criteria.From == nil {
			return criteria, fmt.Errorf("unknown time preset %q", logsSince)
		}
	} else {
		var err error
		if criteria.From, err = parseBound(logsFrom); err != nil {
			return criteria, fmt.Errorf("invalid --from: %w", err)
		}
		if criteria.To, err = parseBound(logsTo); err != nil {
			return criteria, fmt.Errorf("invalid --to: %w", err)
		}
	}

	if len(logsLevels) > 0 {
		criteria.Levels = make(map[model.Level]bool, len(logsLevels))
		for _, name := range logsLevels {
			criteria.Levels[model.ParseLevel(strings.TrimSpace(name))] = true
		}
	}

	for _, h := range logsHide {
		switch strings.TrimSpace(h) {
		case "debug":
			criteria.HideDebug = true
		case "info":
			criteria.HideInfo = true
		case "pings":
			criteria.HidePings = true
		case "health":
			criteria.HideHealthChecks = true
		default:
			return criteria, fmt.Errorf("unknown --hide value %q", h)
		}
	}

	return criteria, nil
}

func parseBound(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
