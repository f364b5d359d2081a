package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ToolBuilder writes a shell script that behaves like lurch-dl: it records
// its arguments, prints fixed stdout and stderr content and exits.
type ToolBuilder struct {
	t      *testing.T
	stdout []string
	stderr []string
	sleep  string
	exit   int
}

// NewTool starts a fake tool definition.
func NewTool(t *testing.T) *ToolBuilder {
	t.Helper()
	return &ToolBuilder{t: t}
}

// Stdout appends lines written to stdout.
func (b *ToolBuilder) Stdout(lines ...string) *ToolBuilder {
	b.stdout = append(b.stdout, lines...)
	return b
}

// Stderr appends lines written to stderr.
func (b *ToolBuilder) Stderr(lines ...string) *ToolBuilder {
	b.stderr = append(b.stderr, lines...)
	return b
}

// SleepAfter makes the tool sleep (a sleep(1) duration like "5") after
// printing, before it exits.
func (b *ToolBuilder) SleepAfter(d string) *ToolBuilder {
	b.sleep = d
	return b
}

// Exit sets the exit code.
func (b *ToolBuilder) Exit(code int) *ToolBuilder {
	b.exit = code
	return b
}

// Build writes the script into a fresh temp dir and returns its path.
func (b *ToolBuilder) Build() string {
	b.t.Helper()
	dir := b.t.TempDir()

	write := func(name string, lines []string) string {
		p := filepath.Join(dir, name)
		content := ""
		if len(lines) > 0 {
			content = strings.Join(lines, "\n") + "\n"
		}
		require.NoError(b.t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}
	outFile := write("stdout.txt", b.stdout)
	errFile := write("stderr.txt", b.stderr)

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "printf '%%s\\n' \"$@\" > '%s'\n", filepath.Join(dir, "args.txt"))
	fmt.Fprintf(&script, "cat '%s'\n", outFile)
	fmt.Fprintf(&script, "cat '%s' >&2\n", errFile)
	if b.sleep != "" {
		fmt.Fprintf(&script, "sleep %s\n", b.sleep)
	}
	fmt.Fprintf(&script, "exit %d\n", b.exit)

	path := filepath.Join(dir, "lurch-dl")
	require.NoError(b.t, os.WriteFile(path, []byte(script.String()), 0o700)) //nolint:gosec // test script must be executable
	return path
}

// RecordedArgs returns the arguments the fake tool at path was invoked with.
func RecordedArgs(t *testing.T, toolPath string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(toolPath), "args.txt"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
