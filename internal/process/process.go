// Package process spawns lurch-dl and exposes its output as an ordered
// sequence of lines.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/zjrosen/lurchfeed/internal/log"
)

// ErrTimeout is returned by Wait when the process exceeded its timeout.
var ErrTimeout = errors.New("process timed out")

// SpawnError reports that the tool could not be started.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Process is a running lurch-dl instance.
type Process struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr io.ReadCloser

	lines    chan Line
	readDone chan struct{}
	readErr  error

	mu     sync.RWMutex
	status Status

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

func newProcess(ctx context.Context, cancel context.CancelFunc, cmd *exec.Cmd, stdout, stderr io.ReadCloser) *Process {
	return &Process{
		cmd:      cmd,
		ctx:      ctx,
		cancel:   cancel,
		stdout:   stdout,
		stderr:   stderr,
		lines:    make(chan Line, 64),
		readDone: make(chan struct{}),
		status:   StatusPending,
		exitCode: -1,
	}
}

// start launches the reader and the pipe closer. The closer unblocks readers
// stuck on a pipe still held open by a grandchild after cancellation.
func (p *Process) start(order StreamOrder, maxLine int) {
	go func() {
		defer close(p.readDone)
		p.readErr = ReadLines(p.ctx, order, p.stdout, p.stderr, maxLine, p.lines)
		if p.readErr != nil {
			// Nobody reads the pipes anymore; stop the child.
			p.cancel()
		}
	}()
	go func() {
		select {
		case <-p.readDone:
		case <-p.ctx.Done():
			_ = p.stdout.Close()
			_ = p.stderr.Close()
		}
	}()
}

// Lines returns the line channel. It is closed once both streams are
// exhausted or the process is cancelled.
func (p *Process) Lines() <-chan Line {
	return p.lines
}

// Status returns the current process status.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

// PID returns the OS process ID, or -1 if not running.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Cancel stops the process. It is a no-op once the process is terminal.
func (p *Process) Cancel() {
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return
	}
	p.status = StatusCancelled
	p.mu.Unlock()
	p.cancel()
}

// Wait blocks until both streams are drained and the process has exited, then
// returns its exit code. A non-zero exit is not an error. The error is set
// when reading failed, the timeout expired or the process could not be
// reaped. Wait may be called more than once.
func (p *Process) Wait() (int, error) {
	p.waitOnce.Do(p.wait)
	return p.exitCode, p.waitErr
}

func (p *Process) wait() {
	// The pipes must be fully read before cmd.Wait closes them.
	<-p.readDone
	err := p.cmd.Wait()
	defer p.cancel()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
	default:
		p.waitErr = fmt.Errorf("waiting for process: %w", err)
	}

	if p.Status() == StatusCancelled {
		log.Debug(log.CatProc, "process was cancelled", "pid", p.PID(), "exit", p.exitCode)
		return
	}
	if errors.Is(p.ctx.Err(), context.DeadlineExceeded) {
		p.waitErr = ErrTimeout
		p.setStatus(StatusFailed)
		log.Warn(log.CatProc, "process timed out", "pid", p.PID())
		return
	}
	if p.readErr != nil && p.waitErr == nil {
		p.waitErr = p.readErr
	}
	if p.waitErr != nil {
		p.setStatus(StatusFailed)
		log.ErrorErr(log.CatProc, "process failed", p.waitErr, "pid", p.PID())
		return
	}
	p.setStatus(StatusExited)
	log.Debug(log.CatProc, "process exited", "pid", p.PID(), "exit", p.exitCode)
}
