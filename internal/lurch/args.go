package lurch

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultFormat lets lurch-dl pick the best available format.
const DefaultFormat = "auto"

// ErrMissingURL is returned by Validate when no URL is set.
var ErrMissingURL = errors.New("url is required")

// Args is the argument contract for one lurch-dl invocation.
type Args struct {
	URL     string
	Start   string // human duration, e.g. "1h5m"; empty means from the beginning
	Stop    string // human duration; empty means to the end
	Chapter int    // 0 means the whole stream
	Format  string // empty or "auto" leaves the choice to lurch-dl
	MaxRate float64
}

// Validate checks the URL is set and that offsets parse as durations.
func (a Args) Validate() error {
	if a.URL == "" {
		return ErrMissingURL
	}
	for name, v := range map[string]string{"start": a.Start, "stop": a.Stop} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s offset %q: %w", name, v, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s offset %q: negative duration", name, v)
		}
	}
	if a.Start != "" && a.Stop != "" {
		start, _ := time.ParseDuration(a.Start)
		stop, _ := time.ParseDuration(a.Stop)
		if stop <= start {
			return fmt.Errorf("stop offset %q must be after start offset %q", a.Stop, a.Start)
		}
	}
	if a.Chapter < 0 {
		return fmt.Errorf("invalid chapter %d", a.Chapter)
	}
	if a.MaxRate < 0 {
		return fmt.Errorf("invalid max rate %g", a.MaxRate)
	}
	return nil
}

// Build returns the lurch-dl argv, without the executable.
func (a Args) Build() []string {
	args := []string{"--url", a.URL}
	if a.Start != "" {
		args = append(args, "--start", a.Start)
	}
	if a.Stop != "" {
		args = append(args, "--stop", a.Stop)
	}
	args = append(args, "--json-data")
	if a.Chapter > 0 {
		args = append(args, "--chapter", strconv.Itoa(a.Chapter))
	}
	if a.Format != "" && a.Format != DefaultFormat {
		args = append(args, "--format", a.Format)
	}
	if a.MaxRate > 0 {
		args = append(args, "--max-rate", strconv.FormatFloat(a.MaxRate, 'f', -1, 64))
	}
	return args
}
