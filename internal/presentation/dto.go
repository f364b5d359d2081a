package presentation

import (
	"time"

	"github.com/zjrosen/lurchfeed/internal/history"
)

// RunDTO represents a recorded run for presentation
type RunDTO struct {
	GUID       string     `json:"guid" yaml:"guid"`
	URL        string     `json:"url" yaml:"url"`
	Start      string     `json:"start,omitempty" yaml:"start,omitempty"`
	Stop       string     `json:"stop,omitempty" yaml:"stop,omitempty"`
	Output     string     `json:"output" yaml:"output"`
	Title      string     `json:"title,omitempty" yaml:"title,omitempty"`
	State      string     `json:"state" yaml:"state"`
	ExitCode   int        `json:"exit_code" yaml:"exit_code"`
	Chunks     int        `json:"chunks" yaml:"chunks"`
	Bytes      int64      `json:"bytes" yaml:"bytes"`
	Malformed  int        `json:"malformed" yaml:"malformed"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Duration   string     `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// FromRun converts a stored run to a DTO.
func FromRun(r *history.Run) RunDTO {
	dto := RunDTO{
		GUID:       r.GUID,
		URL:        r.URL,
		Start:      r.Start,
		Stop:       r.Stop,
		Output:     r.Output,
		Title:      r.Title,
		State:      string(r.State),
		ExitCode:   r.ExitCode,
		Chunks:     r.Chunks,
		Bytes:      r.Bytes,
		Malformed:  r.Malformed,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.FinishedAt != nil {
		dto.Duration = r.FinishedAt.Sub(r.CreatedAt).Round(time.Millisecond).String()
	}
	return dto
}

// FromRuns converts a list of runs, preserving order.
func FromRuns(runs []*history.Run) []RunDTO {
	dtos := make([]RunDTO, 0, len(runs))
	for _, r := range runs {
		dtos = append(dtos, FromRun(r))
	}
	return dtos
}
