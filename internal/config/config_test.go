package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/lurchfeed/internal/flags"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	require.Equal(t, "lurch-dl", cfg.Tool)
	require.Equal(t, StreamOrderInterleaved, cfg.StreamOrder)
	require.Equal(t, MalformedSkip, cfg.OnMalformed)
	require.True(t, cfg.Overwrite)
	require.True(t, cfg.Flags[flags.FlagStripTitleANSI])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "empty tool", mutate: func(c *Config) { c.Tool = "" }, wantErr: "tool must not be empty"},
		{name: "bad start", mutate: func(c *Config) { c.Start = "soon" }, wantErr: "start must be a duration"},
		{name: "good offsets", mutate: func(c *Config) { c.Start = "1h"; c.Stop = "1h30m" }},
		{name: "negative chapter", mutate: func(c *Config) { c.Chapter = -1 }, wantErr: "chapter"},
		{name: "negative rate", mutate: func(c *Config) { c.MaxRate = -1 }, wantErr: "max_rate"},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: "timeout"},
		{name: "stream order", mutate: func(c *Config) { c.StreamOrder = "stderr-first" }, wantErr: "stream_order"},
		{name: "primary-first", mutate: func(c *Config) { c.StreamOrder = StreamOrderPrimaryFirst }},
		{name: "malformed policy", mutate: func(c *Config) { c.OnMalformed = "panic" }, wantErr: "on_malformed"},
		{name: "ui", mutate: func(c *Config) { c.UI = "gui" }, wantErr: "ui must be"},
		{name: "relative history path", mutate: func(c *Config) { c.History.Path = "history.db" }, wantErr: "history.path must be absolute"},
		{name: "sample rate", mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 }, wantErr: "sample_rate"},
		{name: "exporter", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }, wantErr: "tracing.exporter"},
		{
			name: "file exporter needs path",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "file"
				c.Tracing.FilePath = ""
			},
			wantErr: "file_path is required",
		},
		{
			name: "otlp exporter needs endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
				c.Tracing.OTLPEndpoint = ""
			},
			wantErr: "otlp_endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.History.Path = "/tmp/history.db"
			cfg.Tracing.FilePath = "/tmp/traces.jsonl"
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfigTemplate_ParsesToDefaults(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &parsed))

	require.Equal(t, "lurch-dl", parsed["tool"])
	require.Equal(t, StreamOrderInterleaved, parsed["stream_order"])
	require.Equal(t, MalformedSkip, parsed["on_malformed"])
	require.Equal(t, true, parsed["overwrite"])

	fl, ok := parsed["flags"].(map[string]any)
	require.True(t, ok)
	for name, on := range flags.Defaults() {
		require.Equal(t, on, fl[name], name)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	require.Equal(t, "/home/tester/.config/lurchfeed/history.db", DefaultHistoryPath())
	require.Equal(t, "/home/tester/.config/lurchfeed/traces/traces.jsonl", DefaultTracesFilePath())
	require.Equal(t, "/home/tester/.config/lurchfeed/config.yaml", DefaultConfigPath())
}
