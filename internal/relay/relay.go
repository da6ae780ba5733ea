// Package relay re-emits a streamed chat completion under the stable frame
// format of package sse. It holds no per-conversation state: every call
// carries the full message history.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
	"github.com/anshumansp/Business-Consultant-Agent/internal/sse"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream"
)

const (
	MsgMalformedBody   = "Invalid request: malformed JSON body"
	MsgInvalidMessages = "Invalid request: messages must be an array"
	MsgInvalidMessage  = "Invalid request: each message needs a valid role and content"
	MsgInvalidPrompt   = "Invalid request: systemPrompt must be a string"
	MsgStreamingError  = "Streaming error occurred"
)

// Sink receives the frames of one relayed turn.
type Sink interface {
	// Begin commits the response. Once it returns, failures can only be
	// reported in-band.
	Begin() error
	WriteFrame(f sse.Frame) error
}

// Options is the fixed decoding configuration applied to every request.
type Options struct {
	Temperature         float64
	MaxTokens           int
	DefaultSystemPrompt string
}

// DefaultOptions mirrors the production decoding settings.
func DefaultOptions() Options {
	return Options{
		Temperature:         0.7,
		MaxTokens:           2000,
		DefaultSystemPrompt: "You are a helpful business and technology advisor.",
	}
}

type Service struct {
	client upstream.Client
	opts   Options
}

func New(client upstream.Client, opts Options) *Service {
	return &Service{client: client, opts: opts}
}

// Run relays one turn into sink. A returned *UpstreamError with phase
// BeforeStream means sink was never touched and the caller may still answer
// with a regular error response. Whenever Begin succeeded, exactly one
// terminal frame is written unless the client went away. Sinks that know a
// write failed because the peer is gone return an error wrapping
// ErrClientGone.
func (s *Service) Run(ctx context.Context, req models.RelayRequest, sink Sink) error {
	stream, err := s.client.Stream(ctx, upstream.Request{
		Messages:    s.conversation(req),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return &UpstreamError{Phase: BeforeStream, Err: err}
	}
	defer stream.Close()

	if err := sink.Begin(); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		if err := sink.WriteFrame(sse.Content(delta)); err != nil {
			if errors.Is(err, ErrClientGone) {
				return err
			}
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
			}
			return s.abort(sink, err)
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
		}
		return s.abort(sink, err)
	}

	if err := sink.WriteFrame(sse.Done); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return nil
}

// abort reports a mid-stream failure in-band and terminates the stream.
func (s *Service) abort(sink Sink, cause error) error {
	if err := sink.WriteFrame(sse.Error(MsgStreamingError)); err == nil {
		sink.WriteFrame(sse.Done)
	}
	return &UpstreamError{Phase: DuringStream, Err: cause}
}

// conversation prepends the system prompt to the caller's messages.
func (s *Service) conversation(req models.RelayRequest) []models.Message {
	prompt := req.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = s.opts.DefaultSystemPrompt
	}

	out := make([]models.Message, 0, len(req.Messages)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: prompt})
	return append(out, req.Messages...)
}

// Phase records whether an upstream failure happened before or after the
// response was committed.
type Phase int

const (
	BeforeStream Phase = iota
	DuringStream
)

func (p Phase) String() string {
	if p == BeforeStream {
		return "before_stream"
	}
	return "during_stream"
}

type UpstreamError struct {
	Phase Phase
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (%s): %v", e.Phase, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrClientGone reports that the caller disconnected mid-turn.
var ErrClientGone = errors.New("relay: client disconnected")
