package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// New builds a structured logger. level is one of debug, info, warn, error;
// format is text or json.
func New(w io.Writer, level, format string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
	}), nil
}

// Discard returns a logger that writes nothing, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
