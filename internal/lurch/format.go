package lurch

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// FormatProgress renders a progress event as "PP.PP%\tR.R MB/s". The percent
// widens to "100.00%" when complete. Rate is in bytes per second.
func FormatProgress(p Progress) string {
	return fmt.Sprintf("%05.2f%%\t%.1f MB/s", p.Progress*100, p.Rate/1_000_000)
}

// FormatTitle renders the line announcing the stream title.
func FormatTitle(title string) string {
	return "Downloading '" + title + "' ..."
}

// SanitizeTitle removes ANSI escape sequences and any remaining control
// characters from a title so it cannot alter the terminal.
func SanitizeTitle(title string) string {
	stripped := ansi.Strip(title)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
}

// FormatStatus returns the status lines produced by ev, in order. Video data
// and unknown events produce none.
func FormatStatus(ev Event) []string {
	switch ev.Type {
	case EventVideoMeta:
		if ev.Meta != nil {
			return []string{FormatTitle(ev.Meta.Title)}
		}
	case EventProgress:
		if ev.Progress != nil {
			return []string{FormatProgress(*ev.Progress)}
		}
	case EventFormat:
		if ev.Format != nil {
			return []string{"Format: " + ev.Format.Format}
		}
	case EventInfo:
		if ev.Info != nil {
			return []string{ev.Info.Message}
		}
	case EventError:
		if ev.Error != nil {
			return []string{"Error: " + ev.Error.Message}
		}
	case EventAvailableFormats:
		if ev.Formats != nil {
			lines := make([]string, 0, len(ev.Formats.Formats)+1)
			lines = append(lines, "Available formats:")
			for _, f := range ev.Formats.Formats {
				lines = append(lines, "  "+f.Name)
			}
			return lines
		}
	case EventAvailableChapters:
		if ev.Chapters != nil {
			lines := make([]string, 0, len(ev.Chapters.Chapters)+1)
			lines = append(lines, "Available chapters:")
			for _, c := range ev.Chapters.Chapters {
				lines = append(lines, fmt.Sprintf("  %d\t%s\t%s", c.Index, c.Offset, c.Title))
			}
			return lines
		}
	}
	return nil
}
