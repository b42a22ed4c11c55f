package stream

import (
	"encoding/json"
	"errors"
	"strings"
)

// Shape identifies which known line layout a chunk was decoded from.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeChat is {"message":{"content":"..."},"done":false} as sent by /api/chat.
	ShapeChat
	// ShapeCompletion is {"response":"...","done":false} as sent by /api/generate.
	ShapeCompletion
)

func (s Shape) String() string {
	switch s {
	case ShapeChat:
		return "chat"
	case ShapeCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Chunk is one decoded line of backend output.
type Chunk struct {
	Content string
	Done    bool
	Raw     string
	Shape   Shape
}

var (
	errNotObject    = errors.New("line is not a JSON object")
	errUnrecognized = errors.New("no recognized chunk fields")
)

// wireLine is the union of the fields either layout may carry.
type wireLine struct {
	Message  *wireMessage    `json:"message"`
	Response *string         `json:"response"`
	Done     *bool           `json:"done"`
	Error    json.RawMessage `json:"error"`
}

type wireMessage struct {
	Content string `json:"content"`
}

// shapeDecoder matches one layout against a decoded line.
type shapeDecoder struct {
	shape Shape
	match func(w *wireLine) (content string, ok bool)
}

// shapeOrder is tried front to back; the first match wins.
var shapeOrder = []shapeDecoder{
	{shape: ShapeChat, match: func(w *wireLine) (string, bool) {
		if w.Message == nil {
			return "", false
		}
		return w.Message.Content, true
	}},
	{shape: ShapeCompletion, match: func(w *wireLine) (string, bool) {
		if w.Response != nil {
			return *w.Response, true
		}
		// final frames sometimes carry only done and timing fields
		if w.Done != nil {
			return "", true
		}
		return "", false
	}},
}

// ParseLine decodes a single line of backend output. It returns a *ParseFailure
// for anything that is not a recognizable chunk and a *BackendError when the
// backend reported an error in-band.
func ParseLine(line string) (Chunk, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Chunk{}, &ParseFailure{Raw: line, Err: errNotObject}
	}
	var w wireLine
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return Chunk{}, &ParseFailure{Raw: line, Err: err}
	}
	if msg := errorText(w.Error); msg != "" {
		return Chunk{}, &BackendError{Message: msg}
	}
	for _, d := range shapeOrder {
		content, ok := d.match(&w)
		if !ok {
			continue
		}
		ch := Chunk{Content: content, Raw: line, Shape: d.shape}
		if w.Done != nil {
			ch.Done = *w.Done
		}
		return ch, nil
	}
	return Chunk{}, &ParseFailure{Raw: line, Err: errUnrecognized}
}

// errorText extracts a message from either "error":"msg" or "error":{"message":"msg"}.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
