package lurch

import (
	"encoding/json"
	"time"
)

// EventType is the discriminant carried in the "type" field of every event line.
type EventType string

const (
	// EventVideoMeta announces the stream title, once per run.
	EventVideoMeta EventType = "video_meta"
	// EventProgress reports periodic download progress.
	EventProgress EventType = "progress"
	// EventVideoData carries one base64 chunk of the output file.
	EventVideoData EventType = "video_data"
	// EventFormat names the selected video format.
	EventFormat EventType = "format"
	// EventAvailableFormats lists the formats the stream offers.
	EventAvailableFormats EventType = "available_formats"
	// EventAvailableChapters lists the stream's chapters.
	EventAvailableChapters EventType = "available_chapters"
	// EventInfo is a free-form informational message.
	EventInfo EventType = "info"
	// EventError reports a failure inside lurch-dl.
	EventError EventType = "error"
	// EventUnknown is assigned to any discriminant this package does not know.
	// It never appears on the wire.
	EventUnknown EventType = "unknown"
)

// Known reports whether t is one of the wire event types.
func (t EventType) Known() bool {
	switch t {
	case EventVideoMeta, EventProgress, EventVideoData, EventFormat,
		EventAvailableFormats, EventAvailableChapters, EventInfo, EventError:
		return true
	}
	return false
}

// Stream identifies which process output a line came from.
type Stream string

const (
	// StreamStdout is the primary stream.
	StreamStdout Stream = "stdout"
	// StreamStderr is the diagnostic stream.
	StreamStderr Stream = "stderr"
)

// Event is one decoded line from lurch-dl. Exactly one payload pointer is set
// for known types; Unknown events carry only Raw and WireType.
type Event struct {
	Type      EventType
	WireType  string // discriminant as sent, preserved for unknown events
	Stream    Stream
	Line      int // 1-based line number within Stream
	Timestamp time.Time

	Meta     *VideoMeta
	Progress *Progress
	Data     *VideoData
	Format   *Format
	Formats  *AvailableFormats
	Chapters *AvailableChapters
	Info     *Info
	Error    *ErrorInfo

	Raw json.RawMessage
}

// VideoMeta is the payload of a video_meta event.
type VideoMeta struct {
	Title            string `json:"title"`
	ProposedFilename string `json:"proposed_filename,omitempty"`
	VideoClass       string `json:"video_class,omitempty"`
}

// Progress is the payload of a progress event.
// Rate is in bytes per second.
type Progress struct {
	Progress float64 `json:"progress"`
	Rate     float64 `json:"rate"`
	Delaying bool    `json:"delaying,omitempty"`
	Waiting  bool    `json:"waiting,omitempty"`
	Retries  int     `json:"retries,omitempty"`
}

// VideoData is the payload of a video_data event. encoding/json decodes the
// standard padded base64 "data" field straight into Data.
type VideoData struct {
	Index int    `json:"idx"`
	Data  []byte `json:"data"`
}

// Format is the payload of a format event.
type Format struct {
	Format string `json:"format"`
}

// VideoFormat describes one selectable stream format.
type VideoFormat struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// AvailableFormats is the payload of an available_formats event.
type AvailableFormats struct {
	Formats []VideoFormat `json:"formats"`
}

// Chapter is a named offset into the stream.
type Chapter struct {
	Index  int           `json:"index"`
	Title  string        `json:"title"`
	Offset time.Duration `json:"offset"`
}

// AvailableChapters is the payload of an available_chapters event.
type AvailableChapters struct {
	Chapters []Chapter `json:"chapters"`
}

// Info is the payload of an info event.
type Info struct {
	Message string `json:"message"`
}

// ErrorInfo is the payload of an error event. Detail is whatever lurch-dl
// serialized for the underlying Go error, often just {}.
type ErrorInfo struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"error,omitempty"`
}

// IsStatus reports whether the event produces status output (everything
// except video data and unknown events).
func (e *Event) IsStatus() bool {
	return e.Type != EventVideoData && e.Type != EventUnknown
}
