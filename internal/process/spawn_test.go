package process

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lurchfeed/internal/lurch"
)

func shell(ctx context.Context, script string) *SpawnBuilder {
	return NewSpawnBuilder(ctx).WithExecutable("/bin/sh", []string{"-c", script})
}

func drain(p *Process) []Line {
	var lines []Line
	for l := range p.Lines() {
		lines = append(lines, l)
	}
	return lines
}

func TestSpawnBuilder_MissingExecutable(t *testing.T) {
	_, err := NewSpawnBuilder(context.Background()).Build()

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	require.Contains(t, err.Error(), "executable path is required")
}

func TestSpawnBuilder_NonexistentExecutable(t *testing.T) {
	_, err := NewSpawnBuilder(context.Background()).
		WithExecutable("/nonexistent/lurch-dl", nil).
		Build()

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	require.Equal(t, "/nonexistent/lurch-dl", spawnErr.Tool)
}

func TestSpawnBuilder_InvalidStreamOrder(t *testing.T) {
	_, err := NewSpawnBuilder(context.Background()).
		WithExecutable("/bin/echo", nil).
		WithStreamOrder("sideways").
		Build()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown stream order")
}

func TestProcess_ReadsBothStreamsAndExitCode(t *testing.T) {
	p, err := shell(context.Background(), `echo out1; echo err1 >&2; echo out2; exit 3`).Build()
	require.NoError(t, err)
	require.Greater(t, p.PID(), 0)

	lines := drain(p)
	code, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, StatusExited, p.Status())

	require.Equal(t, []string{"out1", "out2"}, texts(lines, lurch.StreamStdout))
	require.Equal(t, []string{"err1"}, texts(lines, lurch.StreamStderr))
}

func TestProcess_PrimaryFirst(t *testing.T) {
	p, err := shell(context.Background(), `echo e >&2; sleep 0.05; echo o`).
		WithStreamOrder(OrderPrimaryFirst).
		Build()
	require.NoError(t, err)

	lines := drain(p)
	_, err = p.Wait()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, lurch.StreamStdout, lines[0].Stream)
	require.Equal(t, lurch.StreamStderr, lines[1].Stream)
}

func TestProcess_LargeStderrDoesNotBlock(t *testing.T) {
	// 256 KiB on stderr before anything on stdout exceeds a pipe buffer.
	p, err := shell(context.Background(), `head -c 262144 /dev/zero | tr '\0' 'x' >&2; echo; echo done`).
		WithStreamOrder(OrderPrimaryFirst).
		Build()
	require.NoError(t, err)

	done := make(chan []Line, 1)
	go func() { done <- drain(p) }()

	select {
	case lines := <-done:
		require.Equal(t, []string{"done"}, texts(lines, lurch.StreamStdout))
	case <-time.After(5 * time.Second):
		p.Cancel()
		require.Fail(t, "reading deadlocked on a full stderr pipe")
	}
	code, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestProcess_LineTooLongStopsChild(t *testing.T) {
	p, err := shell(context.Background(),
		`head -c 300 /dev/zero | tr '\0' x; echo; while true; do echo '{"type":"info","message":"tick"}'; done`).
		WithMaxLineSize(100).
		Build()
	require.NoError(t, err)

	type waitResult struct {
		code int
		err  error
	}
	done := make(chan waitResult, 1)
	go func() {
		drain(p)
		code, err := p.Wait()
		done <- waitResult{code, err}
	}()

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, bufio.ErrTooLong)
		require.Equal(t, StatusFailed, p.Status())
	case <-time.After(5 * time.Second):
		p.Cancel()
		require.Fail(t, "process still running after stdout hit the line limit")
	}
}

func TestProcess_Cancel(t *testing.T) {
	p, err := shell(context.Background(), `echo started; sleep 10`).Build()
	require.NoError(t, err)

	first := <-p.Lines()
	require.Equal(t, "started", string(first.Text))

	p.Cancel()
	require.Equal(t, StatusCancelled, p.Status())

	done := make(chan struct{})
	go func() {
		drain(p)
		_, _ = p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "cancelled process did not finish")
	}
	require.Equal(t, StatusCancelled, p.Status())

	p.Cancel()
	require.Equal(t, StatusCancelled, p.Status())
}

func TestProcess_Timeout(t *testing.T) {
	p, err := shell(context.Background(), `sleep 10`).
		WithTimeout(50 * time.Millisecond).
		Build()
	require.NoError(t, err)

	drain(p)
	_, err = p.Wait()
	require.True(t, errors.Is(err, ErrTimeout))
	require.Equal(t, StatusFailed, p.Status())
}

func TestProcess_WaitIsIdempotent(t *testing.T) {
	p, err := shell(context.Background(), `exit 0`).Build()
	require.NoError(t, err)
	drain(p)

	c1, err1 := p.Wait()
	c2, err2 := p.Wait()
	require.Equal(t, c1, c2)
	require.Equal(t, err1, err2)
}

func TestSpawnBuilder_WithCommandFactoryAndEnv(t *testing.T) {
	var gotName string
	var gotArgs []string
	factory := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.CommandContext(ctx, "/bin/sh", "-c", `echo "$LURCH_TEST"`)
	}

	p, err := NewSpawnBuilder(context.Background()).
		WithExecutable("lurch-dl", []string{"--url", "u", "--json-data"}).
		WithEnv([]string{"LURCH_TEST=hello"}).
		WithWorkDir(t.TempDir()).
		WithCommandFactory(factory).
		Build()
	require.NoError(t, err)

	lines := drain(p)
	_, err = p.Wait()
	require.NoError(t, err)
	require.Equal(t, "lurch-dl", gotName)
	require.Equal(t, []string{"--url", "u", "--json-data"}, gotArgs)
	require.Equal(t, []string{"hello"}, texts(lines, lurch.StreamStdout))
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "running", StatusRunning.String())
	require.Equal(t, "exited", StatusExited.String())
	require.Equal(t, "failed", StatusFailed.String())
	require.Equal(t, "cancelled", StatusCancelled.String())
	require.Equal(t, "unknown", Status(99).String())
	require.True(t, StatusExited.IsTerminal())
	require.False(t, StatusRunning.IsTerminal())
}
