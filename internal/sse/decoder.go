package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Decoder reads data payloads from an event stream. A line split across
// several network reads is held until its newline arrives.
type Decoder struct {
	r   *bufio.Reader
	eof bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the payload of the next data line, skipping blank lines,
// comments and other fields. It returns io.EOF once the stream is exhausted.
func (d *Decoder) Next() (string, error) {
	for {
		if d.eof {
			return "", io.EOF
		}

		line, err := d.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			d.eof = true
		}

		line = strings.TrimRight(line, "\r\n")
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		return strings.TrimPrefix(data, " "), nil
	}
}
