// Package output owns the file a download is written to.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zjrosen/lurchfeed/internal/log"
)

// OutputError reports a failed operation on the output file.
type OutputError struct {
	Path string
	Op   string // "create", "write", "sync" or "close"
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// FileExistsError is returned when overwriting is disabled and the target
// already holds data.
type FileExistsError struct {
	Path string
}

func (e *FileExistsError) Error() string {
	return fmt.Sprintf("output file %s already exists (enable overwrite to replace it)", e.Path)
}

// Is makes errors.Is(err, fs.ErrExist) hold.
func (e *FileExistsError) Is(target error) bool {
	return target == fs.ErrExist
}

// Options control how the output file is opened.
type Options struct {
	// Overwrite allows an existing non-empty file to be truncated.
	Overwrite bool
	// NoSync skips the fsync after each chunk.
	NoSync bool
}

// File is an append-only sink for decoded video chunks. It is truncated on
// open, so it only ever holds bytes from the current run.
type File struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	sync   bool
	chunks int
	bytes  int64
	closed bool
}

// Open creates path (and its parent directories) and truncates it.
func Open(path string, opts Options) (*File, error) {
	if path == "" {
		return nil, &OutputError{Path: path, Op: "create", Err: errors.New("empty path")}
	}
	if !opts.Overwrite {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return nil, &FileExistsError{Path: path}
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &OutputError{Path: path, Op: "create", Err: err}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is the user's chosen output
	if err != nil {
		return nil, &OutputError{Path: path, Op: "create", Err: err}
	}
	log.Debug(log.CatOutput, "output opened", "path", path, "overwrite", opts.Overwrite)
	return &File{path: path, f: f, sync: !opts.NoSync}, nil
}

// Path returns the file path.
func (o *File) Path() string { return o.path }

// WriteChunk appends one chunk and makes it durable before returning.
func (o *File) WriteChunk(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return &OutputError{Path: o.path, Op: "write", Err: fs.ErrClosed}
	}
	n, err := o.f.Write(data)
	o.bytes += int64(n)
	if err != nil {
		return &OutputError{Path: o.path, Op: "write", Err: err}
	}
	if o.sync {
		if err := o.f.Sync(); err != nil {
			return &OutputError{Path: o.path, Op: "sync", Err: err}
		}
	}
	o.chunks++
	return nil
}

// Stats returns the chunks and bytes written so far.
func (o *File) Stats() (chunks int, bytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.chunks, o.bytes
}

// Close closes the file. Calling it again is a no-op.
func (o *File) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.f.Close(); err != nil {
		return &OutputError{Path: o.path, Op: "close", Err: err}
	}
	log.Debug(log.CatOutput, "output closed", "path", o.path, "chunks", o.chunks, "bytes", o.bytes)
	return nil
}
