package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corey/lucid/internal/config"
	"github.com/corey/lucid/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "lucid",
	Short:        "lucid: live full-text index of a directory tree",
	Long:         "Watches a directory, keeps a full-text index in step with it, and serves queries while it changes.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.lucid/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(clearCmd)
}

// loadSettings loads the config file and applies the root override, if
// any. dir may be empty.
func loadSettings(dir string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		cfg.Root = dir
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	cfg.Root = abs
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. An empty path logs to stderr.
func newLogger(cfg *config.Config, path string) (*slog.Logger, io.Closer, error) {
	if path == "" {
		path = cfg.LogFile
	}
	return logging.New(logging.Options{Level: cfg.LogLevel, Path: path})
}

// dirArg returns the optional directory argument.
func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
