package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRunID     = "run.id"
	AttrURL       = "lurch.url"
	AttrStart     = "lurch.start"
	AttrStop      = "lurch.stop"
	AttrOutput    = "output.path"
	AttrPID       = "process.pid"
	AttrExitCode  = "process.exit_code"
	AttrEventType = "event.type"
	AttrStream    = "event.stream"
	AttrLine      = "event.line"
	AttrChunkIdx  = "chunk.index"
	AttrChunkSize = "chunk.bytes"
	AttrBytes     = "output.bytes"
	AttrChunks    = "output.chunks"
	AttrMalformed = "events.malformed"
	AttrTitle     = "video.title"
	AttrErrorMsg  = "error.message"
)

// Span names.
const (
	SpanRun   = "lurchfeed.run"
	SpanSpawn = "lurchfeed.spawn"
	SpanRead  = "lurchfeed.read"
)

// Event names recorded on the read span.
const (
	EventTitle     = "video_meta"
	EventMalformed = "malformed_line"
	EventToolError = "tool_error"
)

// StartRun opens the root span of a download.
func StartRun(ctx context.Context, tracer trace.Tracer, runID, url, start, stop, output string) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanRun, trace.WithAttributes(
		attribute.String(AttrRunID, runID),
		attribute.String(AttrURL, url),
		attribute.String(AttrStart, start),
		attribute.String(AttrStop, stop),
		attribute.String(AttrOutput, output),
	))
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMsg, err.Error()))
}
