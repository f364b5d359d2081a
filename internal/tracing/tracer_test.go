package tracing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.False(t, cfg.Enabled)
	require.Equal(t, "file", cfg.Exporter)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, DefaultServiceName, cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "none", cfg: Config{Enabled: true, Exporter: "none"}},
		{name: "stdout", cfg: Config{Enabled: true, Exporter: "stdout"}},
		{name: "file", cfg: Config{Enabled: true, Exporter: "file", FilePath: filepath.Join(t.TempDir(), "t.jsonl")}},
		{name: "file without path", cfg: Config{Enabled: true, Exporter: "file"}, wantErr: "file_path required"},
		{name: "unknown", cfg: Config{Enabled: true, Exporter: "zipkin"}, wantErr: "unsupported exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, p.Enabled())
			require.NoError(t, p.Shutdown(context.Background()))
		})
	}
}

func TestStartRunAndRecordError(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p := NewProviderWithExporter(exp)

	ctx, span := StartRun(context.Background(), p.Tracer(), "run-1", "https://x", "1h", "2h", "/tmp/o.ts")
	_, child := p.Tracer().Start(ctx, SpanRead)
	child.End()
	RecordError(span, errors.New("disk full"))
	RecordError(span, nil)
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	root := spans[1]
	require.Equal(t, SpanRun, root.Name)
	require.Equal(t, codes.Error, root.Status.Code)
	attrs := map[string]any{}
	for _, kv := range root.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "run-1", attrs[AttrRunID])
	require.Equal(t, "https://x", attrs[AttrURL])
	require.Equal(t, "disk full", attrs[AttrErrorMsg])

	require.Equal(t, root.SpanContext.SpanID(), spans[0].Parent.SpanID())
}
