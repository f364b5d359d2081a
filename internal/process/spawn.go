package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/zjrosen/lurchfeed/internal/log"
)

// CommandFactoryFunc creates an exec.Cmd. Tests use it to substitute a
// scripted tool for lurch-dl.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// SpawnBuilder provides a fluent API for starting lurch-dl.
type SpawnBuilder struct {
	ctx            context.Context
	timeout        time.Duration
	execPath       string
	args           []string
	workDir        string
	env            []string
	order          StreamOrder
	maxLine        int
	commandFactory CommandFactoryFunc
}

// NewSpawnBuilder creates a new SpawnBuilder with the given context.
func NewSpawnBuilder(ctx context.Context) *SpawnBuilder {
	return &SpawnBuilder{
		ctx:     ctx,
		order:   OrderInterleaved,
		maxLine: DefaultMaxLineSize,
	}
}

// WithExecutable sets the executable path and arguments.
func (b *SpawnBuilder) WithExecutable(path string, args []string) *SpawnBuilder {
	b.execPath = path
	b.args = args
	return b
}

// WithWorkDir sets the working directory for the process.
func (b *SpawnBuilder) WithWorkDir(dir string) *SpawnBuilder {
	b.workDir = dir
	return b
}

// WithEnv appends variables ("KEY=VALUE") to os.Environ().
func (b *SpawnBuilder) WithEnv(env []string) *SpawnBuilder {
	b.env = env
	return b
}

// WithTimeout sets the process timeout. Zero or negative means no timeout.
func (b *SpawnBuilder) WithTimeout(d time.Duration) *SpawnBuilder {
	b.timeout = d
	return b
}

// WithStreamOrder selects how stdout and stderr lines are sequenced.
func (b *SpawnBuilder) WithStreamOrder(order StreamOrder) *SpawnBuilder {
	b.order = order
	return b
}

// WithMaxLineSize bounds a single line. Zero keeps the default.
func (b *SpawnBuilder) WithMaxLineSize(n int) *SpawnBuilder {
	if n > 0 {
		b.maxLine = n
	}
	return b
}

// WithCommandFactory sets a custom command factory.
func (b *SpawnBuilder) WithCommandFactory(fn CommandFactoryFunc) *SpawnBuilder {
	b.commandFactory = fn
	return b
}

// Build creates the pipes, starts the process and begins reading its
// streams. Any failure is returned as a *SpawnError and all resources created
// so far are released.
func (b *SpawnBuilder) Build() (*Process, error) {
	if b.execPath == "" {
		return nil, &SpawnError{Tool: "lurch-dl", Err: errors.New("executable path is required")}
	}
	if _, err := ParseStreamOrder(string(b.order)); err != nil {
		return nil, &SpawnError{Tool: b.execPath, Err: err}
	}

	var procCtx context.Context
	var cancel context.CancelFunc
	if b.timeout > 0 {
		procCtx, cancel = context.WithTimeout(b.ctx, b.timeout)
	} else {
		procCtx, cancel = context.WithCancel(b.ctx)
	}

	var stdout, stderr io.ReadCloser
	cleanup := func() {
		cancel()
		if stdout != nil {
			_ = stdout.Close()
		}
		if stderr != nil {
			_ = stderr.Close()
		}
	}

	var cmd *exec.Cmd
	if b.commandFactory != nil {
		cmd = b.commandFactory(procCtx, b.execPath, b.args...)
	} else {
		// #nosec G204 -- argv comes from lurch.Args.Build
		cmd = exec.CommandContext(procCtx, b.execPath, b.args...)
	}
	cmd.Dir = b.workDir
	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}

	var err error
	if stdout, err = cmd.StdoutPipe(); err != nil {
		cleanup()
		return nil, &SpawnError{Tool: b.execPath, Err: err}
	}
	if stderr, err = cmd.StderrPipe(); err != nil {
		cleanup()
		return nil, &SpawnError{Tool: b.execPath, Err: err}
	}

	log.Debug(log.CatProc, "spawning process",
		"execPath", b.execPath,
		"args", b.args,
		"workDir", b.workDir,
		"order", b.order)

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, &SpawnError{Tool: b.execPath, Err: err}
	}

	log.Debug(log.CatProc, "process started", "pid", cmd.Process.Pid)

	p := newProcess(procCtx, cancel, cmd, stdout, stderr)
	p.setStatus(StatusRunning)
	p.start(b.order, b.maxLine)
	return p, nil
}
