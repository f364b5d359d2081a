// Package config provides configuration types and defaults for lurchfeed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/lurchfeed/internal/flags"
	"github.com/zjrosen/lurchfeed/internal/log"
)

// Enum values accepted in the config file.
const (
	StreamOrderInterleaved  = "interleaved"
	StreamOrderPrimaryFirst = "primary-first"

	MalformedSkip  = "skip"
	MalformedAbort = "abort"

	UIPlain = "plain"
	UITUI   = "tui"
)

// Config holds all configuration options for lurchfeed.
type Config struct {
	Tool        string          `mapstructure:"tool"`
	URL         string          `mapstructure:"url"`
	Start       string          `mapstructure:"start"`
	Stop        string          `mapstructure:"stop"`
	Output      string          `mapstructure:"output"`
	Chapter     int             `mapstructure:"chapter"`
	Format      string          `mapstructure:"format"`
	MaxRate     float64         `mapstructure:"max_rate"` // MB/s, 0 leaves the tool default
	StreamOrder string          `mapstructure:"stream_order"`
	OnMalformed string          `mapstructure:"on_malformed"`
	Overwrite   bool            `mapstructure:"overwrite"`
	Timeout     time.Duration   `mapstructure:"timeout"` // 0 means no limit
	UI          string          `mapstructure:"ui"`
	History     HistoryConfig   `mapstructure:"history"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	Flags       map[string]bool `mapstructure:"flags"`
}

// HistoryConfig controls the run history store.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Path is the SQLite database file.
	// Default: ~/.config/lurchfeed/history.db
	Path string `mapstructure:"path"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	// Default: ~/.config/lurchfeed/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lurchfeed")
}

// DefaultHistoryPath returns ~/.config/lurchfeed/history.db, or an empty
// string if the home directory is unavailable.
func DefaultHistoryPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "history.db")
}

// DefaultTracesFilePath returns ~/.config/lurchfeed/traces/traces.jsonl, or
// an empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Tool:        "lurch-dl",
		Format:      "auto",
		StreamOrder: StreamOrderInterleaved,
		OnMalformed: MalformedSkip,
		Overwrite:   true,
		UI:          UIPlain,
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath(),
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Flags: flags.Defaults(),
	}
}

// Validate checks the configuration for errors. URL and output are checked
// when a download starts, not here, so that `history` works without them.
func Validate(c Config) error {
	if c.Tool == "" {
		return fmt.Errorf("tool must not be empty")
	}
	for name, v := range map[string]string{"start": c.Start, "stop": c.Stop} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s must be a duration like 1h5m, got %q", name, v)
		}
	}
	if c.Chapter < 0 {
		return fmt.Errorf("chapter must not be negative, got %d", c.Chapter)
	}
	if c.MaxRate < 0 {
		return fmt.Errorf("max_rate must not be negative, got %v", c.MaxRate)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	switch c.StreamOrder {
	case "", StreamOrderInterleaved, StreamOrderPrimaryFirst:
	default:
		return fmt.Errorf("stream_order must be %q or %q, got %q", StreamOrderInterleaved, StreamOrderPrimaryFirst, c.StreamOrder)
	}
	switch c.OnMalformed {
	case "", MalformedSkip, MalformedAbort:
	default:
		return fmt.Errorf("on_malformed must be %q or %q, got %q", MalformedSkip, MalformedAbort, c.OnMalformed)
	}
	switch c.UI {
	case "", UIPlain, UITUI:
	default:
		return fmt.Errorf("ui must be %q or %q, got %q", UIPlain, UITUI, c.UI)
	}
	if c.History.Path != "" && !filepath.IsAbs(c.History.Path) {
		return fmt.Errorf("history.path must be absolute, got %q", c.History.Path)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	switch tracing.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# lurchfeed configuration

# Path or name of the lurch-dl executable
tool: lurch-dl

# Download target. Usually given on the command line instead.
# url: https://gronkh.tv/streams/777
# start: 1h
# stop: 1h30m
# output: stream.ts
# chapter: 0          # 0 downloads the whole stream
format: auto          # "auto" lets lurch-dl choose
# max_rate: 0         # MB/s, 0 leaves the tool default
# timeout: 0s         # kill lurch-dl after this long, 0 means never

# How stdout and stderr events are sequenced:
#   interleaved    lines from both streams as they arrive
#   primary-first  all stdout events, then all stderr events
stream_order: interleaved

# What to do with a line that is not a valid event: skip or abort
on_malformed: skip

# Replace an existing output file. When false, a non-empty file is kept and
# the run fails.
overwrite: true

# Status rendering: plain or tui
ui: plain

history:
  enabled: true
  # path: ~/.config/lurchfeed/history.db

tracing:
  enabled: false
  exporter: file      # none, file, stdout, otlp
  # file_path: ~/.config/lurchfeed/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

flags:
  history-persistence: true
  strip-title-ansi: true
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
