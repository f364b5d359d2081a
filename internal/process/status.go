package process

// Status represents the lifecycle state of a spawned lurch-dl process.
type Status int

const (
	// StatusPending indicates the process has not yet started.
	StatusPending Status = iota
	// StatusRunning indicates the process is running and its streams are being read.
	StatusRunning
	// StatusExited indicates the process exited on its own, with any exit code.
	StatusExited
	// StatusFailed indicates reading or waiting failed, or the timeout expired.
	StatusFailed
	// StatusCancelled indicates the process was cancelled by the caller.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if this is a terminal status.
func (s Status) IsTerminal() bool {
	return s == StatusExited || s == StatusFailed || s == StatusCancelled
}
