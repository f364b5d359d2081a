// Package consumer turns the lurch-dl line stream into an output file and
// status output. Lines are handled one at a time in arrival order, so video
// chunks land in the file in exactly the order they were read.
package consumer

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/lurch"
	"github.com/zjrosen/lurchfeed/internal/process"
	"github.com/zjrosen/lurchfeed/internal/pubsub"
	"github.com/zjrosen/lurchfeed/internal/tracing"
)

// ChunkWriter receives decoded video chunks.
type ChunkWriter interface {
	WriteChunk(data []byte) error
}

// Consumer dispatches events to the chunk writer and the status writer.
// It is not safe for concurrent use.
type Consumer struct {
	chunks   ChunkWriter
	status   io.Writer
	policy   MalformedPolicy
	sanitize bool
	broker   *pubsub.Broker[Update]
	span     trace.Span

	title     string
	nChunks   int
	nBytes    int64
	counts    map[lurch.EventType]int
	malformed int
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithPolicy sets the malformed-line policy.
func WithPolicy(p MalformedPolicy) ConsumerOption {
	return func(c *Consumer) { c.policy = p }
}

// WithSanitizedTitles strips escape sequences from titles.
func WithSanitizedTitles(on bool) ConsumerOption {
	return func(c *Consumer) { c.sanitize = on }
}

// WithBroker publishes every dispatched event to b.
func WithBroker(b *pubsub.Broker[Update]) ConsumerOption {
	return func(c *Consumer) { c.broker = b }
}

// WithSpan records title, malformed-line and tool-error events on span.
func WithSpan(span trace.Span) ConsumerOption {
	return func(c *Consumer) { c.span = span }
}

// New creates a Consumer writing chunks to chunks and status lines to status.
func New(chunks ChunkWriter, status io.Writer, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		chunks: chunks,
		status: status,
		policy: MalformedSkip,
		counts: make(map[lurch.EventType]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.status == nil {
		c.status = io.Discard
	}
	if c.span == nil {
		_, c.span = noop.NewTracerProvider().Tracer("noop").Start(context.Background(), "noop")
	}
	return c
}

// Consume handles lines until the channel is closed, ctx ends, or a line
// fails fatally. It returns nil once every line has been handled.
func (c *Consumer) Consume(ctx context.Context, lines <-chan process.Line) error {
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.HandleLine(l); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleLine parses one line and dispatches it. A malformed line is skipped
// or returned as an error depending on the policy. stdout and stderr lines
// are treated alike.
func (c *Consumer) HandleLine(l process.Line) error {
	ev, err := lurch.ParseEvent(l.Text)
	if err != nil {
		merr := lurch.Malformed(l.Stream, l.Number, l.Text, err)
		c.malformed++
		c.span.AddEvent(tracing.EventMalformed, trace.WithAttributes(
			attribute.String(tracing.AttrStream, string(l.Stream)),
			attribute.Int(tracing.AttrLine, l.Number),
		))
		if c.policy == MalformedAbort {
			log.ErrorErr(log.CatEvent, "aborting on malformed line", err, "stream", l.Stream, "line", l.Number)
			return merr
		}
		log.Warn(log.CatEvent, "skipping malformed line", "stream", l.Stream, "line", l.Number, "error", err)
		return nil
	}
	ev.Stream = l.Stream
	ev.Line = l.Number
	ev.Timestamp = time.Now()
	return c.Dispatch(ev)
}

// Dispatch applies one decoded event.
func (c *Consumer) Dispatch(ev lurch.Event) error {
	c.counts[ev.Type]++

	switch ev.Type {
	case lurch.EventVideoData:
		if ev.Data == nil {
			return nil
		}
		if err := c.chunks.WriteChunk(ev.Data.Data); err != nil {
			log.ErrorErr(log.CatOutput, "writing chunk failed", err, "idx", ev.Data.Index)
			return err
		}
		c.nChunks++
		c.nBytes += int64(len(ev.Data.Data))
	case lurch.EventVideoMeta:
		if ev.Meta != nil {
			if c.sanitize {
				ev.Meta.Title = lurch.SanitizeTitle(ev.Meta.Title)
			}
			c.title = ev.Meta.Title
			c.span.AddEvent(tracing.EventTitle, trace.WithAttributes(attribute.String(tracing.AttrTitle, c.title)))
		}
	case lurch.EventError:
		if ev.Error != nil {
			log.Warn(log.CatEvent, "lurch-dl reported an error", "message", ev.Error.Message, "stream", ev.Stream)
			c.span.AddEvent(tracing.EventToolError, trace.WithAttributes(attribute.String(tracing.AttrErrorMsg, ev.Error.Message)))
		}
	case lurch.EventUnknown:
		log.Debug(log.CatEvent, "ignoring unknown event", "type", ev.WireType, "stream", ev.Stream, "line", ev.Line)
	}

	for _, line := range lurch.FormatStatus(ev) {
		if _, err := fmt.Fprintln(c.status, line); err != nil {
			log.Debug(log.CatUI, "status write failed", "error", err)
		}
	}

	if c.broker != nil {
		c.broker.Publish(pubsub.StatusEvent, Update{Event: &ev})
	}
	return nil
}

// Title returns the last title seen.
func (c *Consumer) Title() string { return c.title }

// Malformed returns how many lines failed to parse.
func (c *Consumer) Malformed() int { return c.malformed }

// fill copies the consumer's counters into r.
func (c *Consumer) fill(r *Result) {
	r.Title = c.title
	r.Chunks = c.nChunks
	r.Bytes = c.nBytes
	r.Malformed = c.malformed
	r.Counts = make(map[lurch.EventType]int, len(c.counts))
	for k, v := range c.counts {
		r.Counts[k] = v
	}
}
