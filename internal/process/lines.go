package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/lurchfeed/internal/log"
	"github.com/zjrosen/lurchfeed/internal/lurch"
)

// DefaultMaxLineSize bounds a single event line. video_data lines carry a
// whole base64 chunk, so the bufio default of 64 KiB is far too small.
const DefaultMaxLineSize = 64 * 1024 * 1024

// StreamOrder selects how stdout and stderr lines are sequenced.
type StreamOrder string

const (
	// OrderInterleaved delivers lines from both streams as they arrive.
	// Order within each stream is preserved.
	OrderInterleaved StreamOrder = "interleaved"
	// OrderPrimaryFirst delivers every stdout line before any stderr line.
	// stderr is still drained while stdout is read.
	OrderPrimaryFirst StreamOrder = "primary-first"
)

// ParseStreamOrder validates a configured stream order. Empty means interleaved.
func ParseStreamOrder(s string) (StreamOrder, error) {
	switch StreamOrder(s) {
	case "", OrderInterleaved:
		return OrderInterleaved, nil
	case OrderPrimaryFirst:
		return OrderPrimaryFirst, nil
	}
	return "", fmt.Errorf("unknown stream order %q (want %q or %q)", s, OrderInterleaved, OrderPrimaryFirst)
}

// Line is one non-empty line read from a process stream.
type Line struct {
	Stream lurch.Stream
	Number int // 1-based, counts empty lines too
	Text   []byte
}

// ReadLines reads stdout and stderr to EOF and sends every non-empty line to
// out in the requested order. It closes out before returning. The returned
// error is the first scanner failure, or ctx's error if ctx ended first.
func ReadLines(ctx context.Context, order StreamOrder, stdout, stderr io.Reader, maxLine int, out chan<- Line) error {
	defer close(out)
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}

	g, gctx := errgroup.WithContext(ctx)

	// A failed stream closes both readers. Otherwise the other scanner waits
	// for an EOF that never comes while the child blocks on a full pipe.
	var (
		failOnce sync.Once
		failErr  error
	)
	abort := func(err error) error {
		if err != nil {
			failOnce.Do(func() {
				failErr = err
				closeReaders(stdout, stderr)
			})
		}
		return err
	}

	send := func(l Line) error {
		select {
		case out <- l:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}

	g.Go(func() error {
		return abort(scan(stdout, lurch.StreamStdout, maxLine, send))
	})

	var deferred []Line
	if order == OrderPrimaryFirst {
		g.Go(func() error {
			return abort(scan(stderr, lurch.StreamStderr, maxLine, func(l Line) error {
				deferred = append(deferred, l)
				return nil
			}))
		})
	} else {
		g.Go(func() error {
			return abort(scan(stderr, lurch.StreamStderr, maxLine, send))
		})
	}

	if err := g.Wait(); err != nil {
		// Report the stream that failed, not the one we closed under it.
		if failErr != nil {
			return failErr
		}
		return err
	}

	for _, l := range deferred {
		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func closeReaders(readers ...io.Reader) {
	for _, r := range readers {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func scan(r io.Reader, stream lurch.Stream, maxLine int, emit func(Line) error) error {
	scanner := bufio.NewScanner(r)
	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	n := 0
	for scanner.Scan() {
		n++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		text := make([]byte, len(raw))
		copy(text, raw)
		if err := emit(Line{Stream: stream, Number: n, Text: text}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug(log.CatProc, "scanner error", "stream", stream, "line", n+1, "error", err)
		return fmt.Errorf("reading %s after line %d: %w", stream, n, err)
	}
	log.Debug(log.CatProc, "stream exhausted", "stream", stream, "lines", n)
	return nil
}
