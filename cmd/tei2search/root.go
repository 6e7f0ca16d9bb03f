package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tei-tools/tei2search/internal/config"
	"github.com/tei-tools/tei2search/internal/logging"
)

var configPath string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "tei2search",
	Short: "Turn TEI editions into search documents",
	Long: `tei2search fetches TEI letters from a GitLab repository, renders a
transcription and an edited view of every page, and writes article, page,
note, entity and literature records to a search index.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config YAML or JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every subcommand uses.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logging.BuildLogger(level), nil
}

// signalContext is cancelled on SIGINT and SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
