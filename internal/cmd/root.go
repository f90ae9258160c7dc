// Package cmd wires the CLI surface: one-shot snapshots, the live tail,
// and the dashboard API server.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crimson-sun/logdeck/internal/config"
	"github.com/crimson-sun/logdeck/internal/logging"
)

var (
	cfgFile   string
	outputFmt string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "logdeck",
	Short: "Merged log view for a multi-source stack",
	Long: `logdeck pulls recent logs from every source of a deployment, resolves
their timestamps into a single timeline, and renders one merged, filterable
view. It can run as a one-shot snapshot, a live tail, or an API server for
the dashboard frontend.`,
}

// Execute runs the root command under a signal-aware context so every
// subcommand shuts down cleanly on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.logdeck.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".logdeck")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOGDECK")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// loadConfig layers the config file over environment defaults.
func loadConfig() config.Config {
	cfg := config.Load()

	if v := viper.GetString("backend.url"); v != "" {
		cfg.Backend.URL = v
	}
	if v := viper.GetString("backend.token"); v != "" {
		cfg.Backend.Token = v
	}
	if v := viper.GetStringSlice("sources.names"); len(v) > 0 {
		cfg.Sources.Names = v
	}
	if v := viper.GetStringSlice("sources.server_local"); len(v) > 0 {
		cfg.Sources.ServerLocal = v
	}
	if v := viper.GetInt("fetch.max_lines"); v > 0 {
		cfg.Fetch.MaxLines = v
	}
	if v := viper.GetDuration("fetch.throttle"); v > 0 {
		cfg.Fetch.Throttle = v
	}
	if v := viper.GetString("diag.collector_url"); v != "" {
		cfg.Diag.CollectorURL = v
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logging.Init(outputFmt == "json", cfg.LogLevel)
	return cfg
}
