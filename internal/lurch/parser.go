package lurch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON means the line is not a single valid JSON document.
	ErrInvalidJSON = errors.New("line is not valid JSON")
	// ErrNotObject means the line is valid JSON but not an object.
	ErrNotObject = errors.New("line is not a JSON object")
	// ErrMissingType means the object has no string "type" field.
	ErrMissingType = errors.New(`event has no string "type" field`)
)

// MalformedEventError describes a line that could not be decoded into an Event.
type MalformedEventError struct {
	Stream Stream
	Line   int
	Text   string
	Err    error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event on %s line %d: %v", e.Stream, e.Line, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// maxQuotedText bounds how much of the offending line is kept in the error.
const maxQuotedText = 256

// Malformed wraps err with the position of the offending line.
func Malformed(stream Stream, line int, text []byte, err error) *MalformedEventError {
	quoted := text
	if len(quoted) > maxQuotedText {
		quoted = quoted[:maxQuotedText]
	}
	return &MalformedEventError{Stream: stream, Line: line, Text: string(quoted), Err: err}
}

// ParseEvent decodes one line of lurch-dl output.
//
// The discriminant is read with gjson before the payload is decoded, so an
// unknown type costs a single scan and never fails: it is returned as an
// EventUnknown event holding the raw line.
func ParseEvent(line []byte) (Event, error) {
	if !gjson.ValidBytes(line) {
		return Event{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return Event{}, ErrNotObject
	}
	typ := root.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return Event{}, ErrMissingType
	}

	raw := make(json.RawMessage, len(line))
	copy(raw, line)

	ev := Event{
		Type:     EventType(typ.Str),
		WireType: typ.Str,
		Raw:      raw,
	}

	var err error
	switch ev.Type {
	case EventVideoMeta:
		ev.Meta = &VideoMeta{}
		err = json.Unmarshal(line, ev.Meta)
	case EventProgress:
		ev.Progress = &Progress{}
		err = json.Unmarshal(line, ev.Progress)
	case EventVideoData:
		ev.Data = &VideoData{}
		err = json.Unmarshal(line, ev.Data)
	case EventFormat:
		ev.Format = &Format{}
		err = json.Unmarshal(line, ev.Format)
	case EventAvailableFormats:
		ev.Formats = &AvailableFormats{}
		err = json.Unmarshal(line, ev.Formats)
	case EventAvailableChapters:
		ev.Chapters = &AvailableChapters{}
		err = json.Unmarshal(line, ev.Chapters)
	case EventInfo:
		ev.Info = &Info{}
		err = json.Unmarshal(line, ev.Info)
	case EventError:
		ev.Error = &ErrorInfo{}
		err = json.Unmarshal(line, ev.Error)
	default:
		ev.Type = EventUnknown
	}
	if err != nil {
		return Event{}, fmt.Errorf("decoding %s payload: %w", typ.Str, err)
	}
	return ev, nil
}
