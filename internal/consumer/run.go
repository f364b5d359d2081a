package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/lurchfeed/internal/history"
	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/output"
	"github.com/zjrosen/lurchfeed/internal/process"
	"github.com/zjrosen/lurchfeed/internal/pubsub"
	"github.com/zjrosen/lurchfeed/internal/tracing"
)

// runConfig collects the collaborators of Run.
type runConfig struct {
	status         io.Writer
	history        history.Repository
	tracer         trace.Tracer
	broker         *pubsub.Broker[Update]
	commandFactory process.CommandFactoryFunc
	now            func() time.Time
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithStatusWriter sets where status lines go. Defaults to io.Discard.
func WithStatusWriter(w io.Writer) RunOption {
	return func(c *runConfig) { c.status = w }
}

// WithHistory records the run in repo.
func WithHistory(repo history.Repository) RunOption {
	return func(c *runConfig) { c.history = repo }
}

// WithTracer traces the run with tracer.
func WithTracer(t trace.Tracer) RunOption {
	return func(c *runConfig) { c.tracer = t }
}

// WithUpdates publishes every event and the final result to b.
func WithUpdates(b *pubsub.Broker[Update]) RunOption {
	return func(c *runConfig) { c.broker = b }
}

// WithCommandFactory substitutes how the tool process is created.
func WithCommandFactory(fn process.CommandFactoryFunc) RunOption {
	return func(c *runConfig) { c.commandFactory = fn }
}

// Run downloads req to its output file. It spawns the tool, handles every
// line from both streams until both are exhausted, then waits for the tool
// and reports its exit code as Result.ExitCode followed by an
// "Exit status: N" status line.
//
// A non-zero exit code is not an error. The error is set when the request is
// invalid, the output cannot be opened or written, the tool cannot be
// started, or a malformed line is met under MalformedAbort. The Result is
// filled as far as the run got.
func Run(ctx context.Context, req Request, opts ...RunOption) (Result, error) {
	cfg := runConfig{
		status: io.Discard,
		tracer: noop.NewTracerProvider().Tracer("noop"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := Result{RunID: uuid.New(), ExitCode: -1}
	started := cfg.now()

	if err := req.Validate(); err != nil {
		return res, err
	}

	ctx, span := tracing.StartRun(ctx, cfg.tracer, res.RunID.String(),
		req.Args.URL, req.Args.Start, req.Args.Stop, req.Output)
	defer span.End()

	rec := &history.Run{
		GUID:      res.RunID.String(),
		URL:       req.Args.URL,
		Start:     req.Args.Start,
		Stop:      req.Args.Stop,
		Output:    req.Output,
		State:     history.StateRunning,
		ExitCode:  -1,
		CreatedAt: started,
	}
	saveHistory(cfg.history, rec)

	err := run(ctx, req, cfg, span, &res)
	res.Duration = cfg.now().Sub(started)

	if err != nil {
		tracing.RecordError(span, err)
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrExitCode, res.ExitCode),
		attribute.Int(tracing.AttrChunks, res.Chunks),
		attribute.Int64(tracing.AttrBytes, res.Bytes),
		attribute.Int(tracing.AttrMalformed, res.Malformed),
	)

	rec.Title = res.Title
	rec.Chunks = res.Chunks
	rec.Bytes = res.Bytes
	rec.Malformed = res.Malformed
	rec.Finish(res.ExitCode, err, cfg.now())
	saveHistory(cfg.history, rec)

	if cfg.broker != nil {
		final := res
		cfg.broker.Publish(pubsub.FinishedEvent, Update{Result: &final, Err: err})
	}

	log.Info(log.CatProc, "run finished",
		"run", res.RunID,
		"exit", res.ExitCode,
		"chunks", res.Chunks,
		"bytes", res.Bytes,
		"malformed", res.Malformed,
		"duration", res.Duration)
	return res, err
}

func run(ctx context.Context, req Request, cfg runConfig, span trace.Span, res *Result) (err error) {
	out, err := output.Open(req.Output, output.Options{Overwrite: req.Overwrite, NoSync: req.NoSync})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, spawnSpan := cfg.tracer.Start(ctx, tracing.SpanSpawn)
	order, _ := process.ParseStreamOrder(string(req.StreamOrder))
	builder := process.NewSpawnBuilder(ctx).
		WithExecutable(req.Tool, req.Args.Build()).
		WithStreamOrder(order).
		WithTimeout(req.Timeout).
		WithMaxLineSize(req.MaxLineSize)
	if cfg.commandFactory != nil {
		builder.WithCommandFactory(cfg.commandFactory)
	}
	proc, err := builder.Build()
	if err != nil {
		tracing.RecordError(spawnSpan, err)
		spawnSpan.End()
		return err
	}
	spawnSpan.SetAttributes(attribute.Int(tracing.AttrPID, proc.PID()))
	spawnSpan.End()

	readCtx, readSpan := cfg.tracer.Start(ctx, tracing.SpanRead)
	c := New(out, cfg.status,
		WithPolicy(req.OnMalformed),
		WithSanitizedTitles(req.SanitizeTitles),
		WithBroker(cfg.broker),
		WithSpan(readSpan),
	)
	consumeErr := c.Consume(readCtx, proc.Lines())
	if consumeErr != nil {
		proc.Cancel()
		for range proc.Lines() {
		}
	}
	readSpan.End()

	code, waitErr := proc.Wait()
	c.fill(res)
	res.ExitCode = code

	if consumeErr != nil {
		return consumeErr
	}
	if waitErr != nil {
		return waitErr
	}
	if _, werr := fmt.Fprintf(cfg.status, "Exit status: %d\n", code); werr != nil {
		log.Debug(log.CatUI, "status write failed", "error", werr)
	}
	return nil
}

func saveHistory(repo history.Repository, rec *history.Run) {
	if repo == nil {
		return
	}
	if err := repo.Save(rec); err != nil {
		var nf *history.NotFoundError
		if errors.As(err, &nf) {
			log.Warn(log.CatHistory, "run vanished from history", "guid", rec.GUID)
			return
		}
		log.ErrorErr(log.CatHistory, "saving run failed", err, "guid", rec.GUID)
	}
}
