package consumer

import (
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/lurchfeed/internal/lurch"
)

// Result summarizes a finished run.
type Result struct {
	RunID     uuid.UUID
	Title     string
	Chunks    int
	Bytes     int64
	Counts    map[lurch.EventType]int
	Malformed int
	ExitCode  int
	Duration  time.Duration
}

// Update is published to subscribers while a run progresses. Exactly one of
// Event or Result is set: Event for each dispatched event, Result once the
// run is over.
type Update struct {
	Event  *lurch.Event
	Result *Result
	Err    error
}
