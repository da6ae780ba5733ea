package chatclient

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/anshumansp/Business-Consultant-Agent/internal/sse"
)

// readStream consumes frames until the terminal marker. Malformed payloads
// are logged and skipped. An error frame does not stop the read; it is
// reported once the marker arrives.
func readStream(r io.Reader, logger *log.Logger, onDelta func(string)) (string, error) {
	dec := sse.NewDecoder(r)

	var (
		text   strings.Builder
		remote error
	)
	for {
		data, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return text.String(), ErrStreamTruncated
		}
		if err != nil {
			return text.String(), fmt.Errorf("chatclient: read stream: %w", err)
		}

		f, err := sse.ParsePayload(data)
		if err != nil {
			logger.Warn("skipping malformed frame", "data", data, "err", err)
			continue
		}

		switch f.Kind {
		case sse.KindDone:
			return text.String(), remote
		case sse.KindError:
			remote = &RemoteError{Message: f.Text}
		case sse.KindContent:
			text.WriteString(f.Text)
			if onDelta != nil {
				onDelta(f.Text)
			}
		}
	}
}

// healthURL maps a chat endpoint onto the health check at the host root.
func healthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("chatclient: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("chatclient: invalid endpoint %q", endpoint)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String(), nil
}
