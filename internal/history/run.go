// Package history records lurchfeed runs so past downloads can be listed.
package history

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ParseState validates a state name. Empty is allowed and means "any".
func ParseState(s string) (State, error) {
	switch State(s) {
	case "", StateRunning, StateCompleted, StateFailed:
		return State(s), nil
	}
	return "", fmt.Errorf("unknown run state %q", s)
}

// Run is one invocation of lurch-dl.
type Run struct {
	ID         int64      `json:"-" yaml:"-"`
	GUID       string     `json:"guid" yaml:"guid"`
	URL        string     `json:"url" yaml:"url"`
	Start      string     `json:"start,omitempty" yaml:"start,omitempty"`
	Stop       string     `json:"stop,omitempty" yaml:"stop,omitempty"`
	Output     string     `json:"output" yaml:"output"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	State      State      `json:"state" yaml:"state"`
	ExitCode   int        `json:"exit_code" yaml:"exit_code"`
	Chunks     int        `json:"chunks" yaml:"chunks"`
	Bytes      int64      `json:"bytes" yaml:"bytes"`
	Malformed  int        `json:"malformed" yaml:"malformed"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Finish marks the run terminal. A zero exit code with no error completes the
// run; anything else fails it.
func (r *Run) Finish(exitCode int, runErr error, at time.Time) {
	r.ExitCode = exitCode
	r.FinishedAt = &at
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if exitCode == 0 && runErr == nil {
		r.State = StateCompleted
	} else {
		r.State = StateFailed
	}
}

// ListFilter narrows List results.
type ListFilter struct {
	State State // empty matches every state
	Limit int   // 0 means no limit
}

// Repository stores runs.
type Repository interface {
	// Save inserts the run when its ID is zero, and updates it otherwise.
	Save(run *Run) error
	// FindByGUID returns NotFoundError when no run matches.
	FindByGUID(guid string) (*Run, error)
	// List returns runs newest first.
	List(filter ListFilter) ([]*Run, error)
	Close() error
}

// NotFoundError is returned when a run does not exist.
type NotFoundError struct {
	GUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s", e.GUID)
}
