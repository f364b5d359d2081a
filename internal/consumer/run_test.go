package consumer

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/lurchfeed/internal/history"
	"github.com/zjrosen/lurchfeed/internal/lurch"
	"github.com/zjrosen/lurchfeed/internal/output"
	"github.com/zjrosen/lurchfeed/internal/process"
	"github.com/zjrosen/lurchfeed/internal/pubsub"
	"github.com/zjrosen/lurchfeed/internal/testutil"
	"github.com/zjrosen/lurchfeed/internal/tracing"
)

func request(tool, out string) Request {
	return Request{
		Tool:      tool,
		Args:      lurch.Args{URL: "https://gronkh.tv/streams/777", Start: "1h", Stop: "1h5m"},
		Output:    out,
		Overwrite: true,
		NoSync:    true,
	}
}

var threeLines = []string{
	`{"type":"video_meta","title":"Example Stream"}`,
	`{"type":"video_data","data":"AAAA"}`,
	`{"type":"progress","progress":1.0,"rate":0}`,
}

func TestRun_EndToEnd(t *testing.T) {
	tool := testutil.NewTool(t).Stdout(threeLines...).Build()
	out := filepath.Join(t.TempDir(), "stream.ts")

	var status bytes.Buffer
	res, err := Run(context.Background(), request(tool, out), WithStatusWriter(&status))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0}, data)

	require.Equal(t, "Downloading 'Example Stream' ...\n100.00%\t0.0 MB/s\nExit status: 0\n", status.String())
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, "Example Stream", res.Title)
	require.Equal(t, 1, res.Chunks)
	require.Equal(t, int64(3), res.Bytes)
	require.Equal(t, 1, res.Counts[lurch.EventProgress])
	require.NotEqual(t, [16]byte{}, [16]byte(res.RunID))

	require.Equal(t,
		[]string{"--url", "https://gronkh.tv/streams/777", "--start", "1h", "--stop", "1h5m", "--json-data"},
		testutil.RecordedArgs(t, tool))
}

func TestRun_FallbackToStderr(t *testing.T) {
	for _, order := range []process.StreamOrder{process.OrderInterleaved, process.OrderPrimaryFirst} {
		t.Run(string(order), func(t *testing.T) {
			tool := testutil.NewTool(t).Stderr(threeLines...).Build()
			out := filepath.Join(t.TempDir(), "stream.ts")

			req := request(tool, out)
			req.StreamOrder = order
			var status bytes.Buffer
			res, err := Run(context.Background(), req, WithStatusWriter(&status))
			require.NoError(t, err)
			require.Equal(t, 0, res.ExitCode)

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			require.Equal(t, []byte{0, 0, 0}, data)
			require.Equal(t, "Downloading 'Example Stream' ...\n100.00%\t0.0 MB/s\nExit status: 0\n", status.String())
		})
	}
}

func TestRun_PrimaryFirstOrdersStatus(t *testing.T) {
	tool := testutil.NewTool(t).
		Stderr(testutil.InfoLine("from stderr")).
		Stdout(testutil.InfoLine("from stdout")).
		Build()
	req := request(tool, filepath.Join(t.TempDir(), "o.ts"))
	req.StreamOrder = process.OrderPrimaryFirst

	var status bytes.Buffer
	_, err := Run(context.Background(), req, WithStatusWriter(&status))
	require.NoError(t, err)
	require.Equal(t, "from stdout\nfrom stderr\nExit status: 0\n", status.String())
}

func TestRun_TruncatesExistingOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stream.ts")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte{0xff}, 4096), 0o644))

	tool := testutil.NewTool(t).Stdout(testutil.DataLine(0, []byte("new"))).Build()
	_, err := Run(context.Background(), request(tool, out))
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestRun_OverwriteGuard(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stream.ts")
	require.NoError(t, os.WriteFile(out, []byte("precious"), 0o644))

	tool := testutil.NewTool(t).Stdout(testutil.DataLine(0, []byte("new"))).Build()
	req := request(tool, out)
	req.Overwrite = false

	_, err := Run(context.Background(), req)
	var exists *output.FileExistsError
	require.ErrorAs(t, err, &exists)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "precious", string(data))
}

func TestRun_NonZeroExitIsReported(t *testing.T) {
	tool := testutil.NewTool(t).
		Stdout(testutil.DataLine(0, []byte{1, 2})).
		Stderr(testutil.ErrorLine("stream went offline")).
		Exit(3).
		Build()

	var status bytes.Buffer
	res, err := Run(context.Background(), request(tool, filepath.Join(t.TempDir(), "o.ts")), WithStatusWriter(&status))
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, status.String(), "Error: stream went offline\n")
	require.Contains(t, status.String(), "Exit status: 3\n")
}

func TestRun_EmptyStreams(t *testing.T) {
	out := filepath.Join(t.TempDir(), "o.ts")
	tool := testutil.NewTool(t).Build()

	var status bytes.Buffer
	res, err := Run(context.Background(), request(tool, out), WithStatusWriter(&status))
	require.NoError(t, err)
	require.Equal(t, "Exit status: 0\n", status.String())
	require.Zero(t, res.Chunks)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestRun_SpawnError(t *testing.T) {
	req := request("/nonexistent/lurch-dl", filepath.Join(t.TempDir(), "o.ts"))
	res, err := Run(context.Background(), req)

	var spawnErr *process.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	require.Equal(t, -1, res.ExitCode)
}

func TestRun_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no tool", req: Request{Output: "o", Args: lurch.Args{URL: "u"}}},
		{name: "no output", req: Request{Tool: "t", Args: lurch.Args{URL: "u"}}},
		{name: "no url", req: Request{Tool: "t", Output: "o"}},
		{name: "bad offset", req: Request{Tool: "t", Output: "o", Args: lurch.Args{URL: "u", Start: "x"}}},
		{name: "bad order", req: Request{Tool: "t", Output: "o", Args: lurch.Args{URL: "u"}, StreamOrder: "x"}},
		{name: "bad policy", req: Request{Tool: "t", Output: "o", Args: lurch.Args{URL: "u"}, OnMalformed: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.req)
			require.Error(t, err)
		})
	}
}

func TestRun_MalformedSkipCounts(t *testing.T) {
	tool := testutil.NewTool(t).
		Stdout("garbage", testutil.DataLine(0, []byte("ok"))).
		Stderr("lurch-dl: plain text warning").
		Build()

	res, err := Run(context.Background(), request(tool, filepath.Join(t.TempDir(), "o.ts")))
	require.NoError(t, err)
	require.Equal(t, 2, res.Malformed)
	require.Equal(t, 1, res.Chunks)
}

func TestRun_MalformedAbortCancelsTool(t *testing.T) {
	tool := testutil.NewTool(t).
		Stdout(testutil.DataLine(0, []byte("a")), "garbage").
		SleepAfter("10").
		Build()

	req := request(tool, filepath.Join(t.TempDir(), "o.ts"))
	req.OnMalformed = MalformedAbort

	start := time.Now()
	res, err := Run(context.Background(), req)
	require.Less(t, time.Since(start), 5*time.Second)

	var merr *lurch.MalformedEventError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 2, merr.Line)
	require.Equal(t, 1, res.Chunks)
}

func TestRun_OverlongLineStopsChattyTool(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "lurch-dl")
	script := "#!/bin/sh\n" +
		"head -c 300 /dev/zero | tr '\\0' x; echo\n" +
		"while true; do echo '{\"type\":\"info\",\"message\":\"tick\"}'; done\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o700)) //nolint:gosec // test script must be executable

	req := request(tool, filepath.Join(dir, "o.ts"))
	req.MaxLineSize = 100

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, req)
	require.Less(t, time.Since(start), 5*time.Second)
	require.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestRun_Timeout(t *testing.T) {
	tool := testutil.NewTool(t).Stdout(testutil.InfoLine("waiting")).SleepAfter("10").Build()
	req := request(tool, filepath.Join(t.TempDir(), "o.ts"))
	req.Timeout = 100 * time.Millisecond

	_, err := Run(context.Background(), req)
	require.ErrorIs(t, err, process.ErrTimeout)
}

func TestRun_RecordsHistory(t *testing.T) {
	repo := history.NewMemoryRepository()
	tool := testutil.NewTool(t).Stdout(threeLines...).Exit(2).Build()

	res, err := Run(context.Background(), request(tool, filepath.Join(t.TempDir(), "o.ts")), WithHistory(repo))
	require.NoError(t, err)

	run, err := repo.FindByGUID(res.RunID.String())
	require.NoError(t, err)
	require.Equal(t, history.StateFailed, run.State)
	require.Equal(t, 2, run.ExitCode)
	require.Equal(t, "Example Stream", run.Title)
	require.Equal(t, int64(3), run.Bytes)
	require.Equal(t, "https://gronkh.tv/streams/777", run.URL)
	require.NotNil(t, run.FinishedAt)
}

func TestRun_PublishesFinished(t *testing.T) {
	broker := pubsub.NewBrokerWithBuffer[Update](64)
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := broker.Subscribe(ctx)

	tool := testutil.NewTool(t).Stdout(threeLines...).Build()
	res, err := Run(context.Background(), request(tool, filepath.Join(t.TempDir(), "o.ts")), WithUpdates(broker))
	require.NoError(t, err)

	var kinds []pubsub.EventType
	for {
		select {
		case ev := <-sub:
			kinds = append(kinds, ev.Type)
			if ev.Type == pubsub.FinishedEvent {
				require.NotNil(t, ev.Payload.Result)
				require.Equal(t, res.RunID, ev.Payload.Result.RunID)
				require.NoError(t, ev.Payload.Err)
				require.Equal(t, []pubsub.EventType{
					pubsub.StatusEvent, pubsub.StatusEvent, pubsub.StatusEvent, pubsub.FinishedEvent,
				}, kinds)
				return
			}
		case <-time.After(2 * time.Second):
			require.Fail(t, "finished update not published", "got %v", kinds)
			return
		}
	}
}

func TestRun_Traced(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p := tracing.NewProviderWithExporter(exp)

	tool := testutil.NewTool(t).Stdout(threeLines...).Stderr("oops").Build()
	_, err := Run(context.Background(), request(tool, filepath.Join(t.TempDir(), "o.ts")), WithTracer(p.Tracer()))
	require.NoError(t, err)

	names := map[string]tracetest.SpanStub{}
	for _, s := range exp.GetSpans() {
		names[s.Name] = s
	}
	require.Contains(t, names, tracing.SpanRun)
	require.Contains(t, names, tracing.SpanSpawn)
	require.Contains(t, names, tracing.SpanRead)

	var events []string
	for _, e := range names[tracing.SpanRead].Events {
		events = append(events, e.Name)
	}
	require.Contains(t, events, tracing.EventTitle)
	require.Contains(t, events, tracing.EventMalformed)
}
