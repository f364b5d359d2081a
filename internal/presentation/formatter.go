// Package presentation renders recorded runs for the history command.
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Format selects how runs are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatRuns writes runs in the requested format.
func (f *Formatter) FormatRuns(runs []RunDTO, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(f.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	case FormatYAML:
		encoder := yaml.NewEncoder(f.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(runs); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return f.formatTable(runs)
	}
}

func (f *Formatter) formatTable(runs []RunDTO) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(f.writer, "No runs recorded.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CREATED", "STATE", "EXIT", "BYTES", "TITLE", "OUTPUT")
	for _, r := range runs {
		title := r.Title
		if title == "" {
			title = r.URL
		}
		t.Row(
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.State,
			strconv.Itoa(r.ExitCode),
			strconv.FormatInt(r.Bytes, 10),
			title,
			r.Output,
		)
	}
	_, err := fmt.Fprintln(f.writer, t.Render())
	return err
}
