// Package sse implements the relay's event-stream wire format: one
// "data: <payload>" line followed by a blank line per frame, where the payload
// is either a JSON object carrying content or error text, or the terminal
// marker [DONE].
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DonePayload is the terminal marker. No frame follows it.
const DonePayload = "[DONE]"

// Kind tags the three frame variants.
type Kind int

const (
	KindContent Kind = iota
	KindError
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Frame is a single unit of the relay stream.
type Frame struct {
	Kind Kind
	Text string
}

// Done is the terminal frame.
var Done = Frame{Kind: KindDone}

// Content returns a frame carrying a token of assistant text.
func Content(text string) Frame { return Frame{Kind: KindContent, Text: text} }

// Error returns an in-band error frame.
func Error(message string) Frame { return Frame{Kind: KindError, Text: message} }

// ErrUnknownPayload is returned when a JSON payload has neither content nor error.
var ErrUnknownPayload = errors.New("sse: payload has neither content nor error")

type contentPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Payload returns the bytes that follow "data: " for f.
func (f Frame) Payload() ([]byte, error) {
	var v any
	switch f.Kind {
	case KindDone:
		return []byte(DonePayload), nil
	case KindContent:
		v = contentPayload{Content: f.Text}
	case KindError:
		v = errorPayload{Error: f.Text}
	default:
		return nil, fmt.Errorf("sse: cannot encode %s frame", f.Kind)
	}

	// Keep <, > and & literal so payloads match what browsers produce.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("sse: encode %s frame: %w", f.Kind, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParsePayload decodes the text that followed "data:" on a stream line.
func ParsePayload(data string) (Frame, error) {
	if data == DonePayload {
		return Done, nil
	}

	var p struct {
		Content *string `json:"content"`
		Error   *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Frame{}, fmt.Errorf("sse: decode payload: %w", err)
	}

	switch {
	case p.Error != nil:
		return Error(*p.Error), nil
	case p.Content != nil:
		return Content(*p.Content), nil
	}
	return Frame{}, ErrUnknownPayload
}
