// Package config loads lucid's YAML configuration. A missing file yields
// defaults; LUCID_* environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/corey/lucid/internal/domain/change"
	"github.com/corey/lucid/internal/ports"
)

// Engine names.
const (
	EngineMemory = "memory"
	EngineBleve  = "bleve"
)

// Config is the full configuration.
type Config struct {
	Root           string        `yaml:"root"`
	Extensions     []string      `yaml:"extensions"`
	Ignore         []string      `yaml:"ignore"`
	Engine         string        `yaml:"engine"`
	DataDir        string        `yaml:"data_dir"`
	MaxFileBytes   int64         `yaml:"max_file_bytes"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	QueryCacheSize int           `yaml:"query_cache_size"`
	PreviewChars   int           `yaml:"preview_chars"`
	Workers        int           `yaml:"workers"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	WatchQuery     string        `yaml:"watch_query"`
}

// Home returns ~/.lucid, or .lucid in the working directory when the home
// directory is unknown.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lucid"
	}
	return filepath.Join(home, ".lucid")
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// Default returns the built-in configuration. Root is the working directory.
func Default() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return &Config{
		Root:           root,
		Extensions:     append([]string(nil), change.DefaultExtensions...),
		Ignore:         append([]string(nil), change.DefaultIgnore...),
		Engine:         EngineMemory,
		DataDir:        filepath.Join(Home(), "data"),
		MaxFileBytes:   1 << 20,
		StopTimeout:    2 * time.Second,
		QueryCacheSize: 256,
		PreviewChars:   150,
		Workers:        4,
		LogLevel:       "info",
	}
}

// Load reads path over the defaults. An empty path means DefaultPath; a
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if err := loadYAMLFile(path, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrConfig, path, err)
	}
	applyEnvironment(cfg)
	cfg.expand()
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("LUCID_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("LUCID_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("LUCID_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LUCID_EXTENSIONS"); v != "" {
		cfg.Extensions = strings.Split(v, ",")
	}
	if v := os.Getenv("LUCID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LUCID_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}

// expand resolves a leading ~ in path fields.
func (c *Config) expand() {
	c.Root = expandHome(c.Root)
	c.DataDir = expandHome(c.DataDir)
	c.LogFile = expandHome(c.LogFile)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks the configuration. Every error wraps ports.ErrConfig.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ports.ErrConfig)
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("%w: root: %w", ports.ErrConfig, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: root %s is not a directory", ports.ErrConfig, c.Root)
	}
	switch c.Engine {
	case EngineMemory, EngineBleve:
	default:
		return fmt.Errorf("%w: unknown engine %q (want %s or %s)", ports.ErrConfig, c.Engine, EngineMemory, EngineBleve)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: extensions is empty", ports.ErrConfig)
	}
	for _, g := range c.Ignore {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: bad ignore glob %q", ports.ErrConfig, g)
		}
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ports.ErrConfig)
	}
	for name, v := range map[string]int64{
		"max_file_bytes":   c.MaxFileBytes,
		"stop_timeout":     int64(c.StopTimeout),
		"query_cache_size": int64(c.QueryCacheSize),
		"preview_chars":    int64(c.PreviewChars),
		"workers":          int64(c.Workers),
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ports.ErrConfig, name)
		}
	}
	return nil
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
