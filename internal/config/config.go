package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Config holds all logdeck configuration.
type Config struct {
	Backend  BackendConfig
	Sources  SourcesConfig
	Fetch    FetchConfig
	Diag     DiagConfig
	LogLevel string // "debug", "info", "warn", "error"
}

// BackendConfig holds backend API connection settings.
type BackendConfig struct {
	URL   string
	Token string
}

// SourcesConfig names the log producers to aggregate and their clock
// conventions.
type SourcesConfig struct {
	// Names of the backend-served sources, in display order.
	Names []string

	// ServerLocal lists sources whose zone-less timestamps are server
	// wall-clock time. Everything else is assumed UTC.
	ServerLocal []string

	// FileGlobs maps a source id to local glob patterns, for logs mounted
	// from containers instead of served by the backend.
	FileGlobs map[string][]string
}

// FetchConfig controls snapshot reads.
type FetchConfig struct {
	MaxLines int
	Throttle time.Duration // per-source minimum spacing, 0 disables
}

// DiagConfig controls the diagnostic ring and collector delivery.
type DiagConfig struct {
	Capacity      int
	CollectorURL  string
	FlushInterval time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. Command-line flags layered on top by the cmd package win.
func Load() Config {
	return Config{
		Backend: BackendConfig{
			URL:   getenv("LOGDECK_BACKEND_URL", "http://127.0.0.1:9000"),
			Token: os.Getenv("LOGDECK_API_TOKEN"),
		},
		Sources: SourcesConfig{
			Names:       splitList(getenv("LOGDECK_SOURCES", "api,worker,nginx")),
			ServerLocal: splitList(getenv("LOGDECK_SERVER_LOCAL_SOURCES", "nginx")),
			FileGlobs:   loadFileGlobs(),
		},
		Fetch: FetchConfig{
			MaxLines: getenvInt("LOGDECK_MAX_LINES", 500),
			Throttle: getenvDuration("LOGDECK_THROTTLE", 0),
		},
		Diag: DiagConfig{
			Capacity:      getenvInt("LOGDECK_DIAG_CAPACITY", 5000),
			CollectorURL:  os.Getenv("LOGDECK_COLLECTOR_URL"),
			FlushInterval: getenvDuration("LOGDECK_DIAG_FLUSH", time.Minute),
		},
		LogLevel: getenv("LOGDECK_LOG_LEVEL", "info"),
	}
}

// Conventions builds the per-source clock convention map.
func (s SourcesConfig) Conventions() map[string]model.ClockConvention {
	m := make(map[string]model.ClockConvention, len(s.ServerLocal))
	for _, id := range s.ServerLocal {
		m[id] = model.AssumeServerLocal
	}
	return m
}

// loadFileGlobs parses LOGDECK_FILE_SOURCES, a semicolon-separated list of
// id=glob[,glob...] items, e.g. "mounted=/var/log/stack/**/*.log".
func loadFileGlobs() map[string][]string {
	raw := os.Getenv("LOGDECK_FILE_SOURCES")
	if raw == "" {
		return nil
	}
	m := make(map[string][]string)
	for _, item := range strings.Split(raw, ";") {
		id, globs, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || id == "" {
			continue
		}
		m[id] = splitList(globs)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
