package consumer

import (
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/lurchfeed/internal/lurch"
	"github.com/zjrosen/lurchfeed/internal/process"
)

// MalformedPolicy decides what happens to a line that is not a valid event.
type MalformedPolicy string

const (
	// MalformedSkip logs and counts the line, then continues.
	MalformedSkip MalformedPolicy = "skip"
	// MalformedAbort stops the run with a *lurch.MalformedEventError.
	MalformedAbort MalformedPolicy = "abort"
)

// ParseMalformedPolicy validates a configured policy. Empty means skip.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch MalformedPolicy(s) {
	case "", MalformedSkip:
		return MalformedSkip, nil
	case MalformedAbort:
		return MalformedAbort, nil
	}
	return "", fmt.Errorf("unknown malformed-line policy %q (want %q or %q)", s, MalformedSkip, MalformedAbort)
}

// Request describes one download.
type Request struct {
	// Tool is the lurch-dl executable, by path or name on $PATH.
	Tool string
	Args lurch.Args
	// Output is the file the decoded chunks are written to.
	Output string
	// Overwrite allows replacing a non-empty Output.
	Overwrite bool

	StreamOrder process.StreamOrder
	OnMalformed MalformedPolicy
	Timeout     time.Duration
	MaxLineSize int

	// SanitizeTitles strips escape sequences from titles before printing.
	SanitizeTitles bool
	// NoSync skips the per-chunk fsync.
	NoSync bool
}

// ErrMissingOutput is returned when no output path is given.
var ErrMissingOutput = errors.New("output path is required")

// Validate checks the request before anything is spawned or opened.
func (r Request) Validate() error {
	if r.Tool == "" {
		return errors.New("tool is required")
	}
	if r.Output == "" {
		return ErrMissingOutput
	}
	if err := r.Args.Validate(); err != nil {
		return err
	}
	if _, err := process.ParseStreamOrder(string(r.StreamOrder)); err != nil {
		return err
	}
	if _, err := ParseMalformedPolicy(string(r.OnMalformed)); err != nil {
		return err
	}
	if r.Timeout < 0 {
		return fmt.Errorf("invalid timeout %v", r.Timeout)
	}
	return nil
}
