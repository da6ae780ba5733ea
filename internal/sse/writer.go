package sse

import (
	"fmt"
	"io"
)

// Writer encodes frames onto an event stream and flushes after each one.
type Writer struct {
	w     io.Writer
	flush func() error
}

// NewWriter returns a Writer. flush may be nil when w is unbuffered.
func NewWriter(w io.Writer, flush func() error) *Writer {
	return &Writer{w: w, flush: flush}
}

// WriteFrame writes f as a single data line followed by a blank line.
func (w *Writer) WriteFrame(f Frame) error {
	payload, err := f.Payload()
	if err != nil {
		return err
	}

	line := make([]byte, 0, len(payload)+8)
	line = append(line, "data: "...)
	line = append(line, payload...)
	line = append(line, '\n', '\n')

	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("sse: write frame: %w", err)
	}
	if w.flush != nil {
		if err := w.flush(); err != nil {
			return fmt.Errorf("sse: flush: %w", err)
		}
	}
	return nil
}
