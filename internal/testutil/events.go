// Package testutil provides helpers for tests that drive lurchfeed against a
// scripted stand-in for lurch-dl.
package testutil

import (
	"encoding/base64"
	"encoding/json"
)

func line(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// MetaLine returns a video_meta event line.
func MetaLine(title string) string {
	return line(map[string]any{"type": "video_meta", "title": title})
}

// ProgressLine returns a progress event line. rate is in bytes per second.
func ProgressLine(progress, rate float64) string {
	return line(map[string]any{"type": "progress", "progress": progress, "rate": rate})
}

// DataLine returns a video_data event line carrying data.
func DataLine(idx int, data []byte) string {
	return line(map[string]any{"type": "video_data", "idx": idx, "data": base64.StdEncoding.EncodeToString(data)})
}

// InfoLine returns an info event line.
func InfoLine(msg string) string {
	return line(map[string]any{"type": "info", "message": msg})
}

// ErrorLine returns an error event line.
func ErrorLine(msg string) string {
	return line(map[string]any{"type": "error", "message": msg, "error": map[string]any{}})
}

// FormatLine returns a format event line.
func FormatLine(name string) string {
	return line(map[string]any{"type": "format", "format": name})
}
