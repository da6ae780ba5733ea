// Package upstream defines the completion provider contract used by the relay.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// Request is one streamed completion call. Messages already carry the
// system prompt as their first element.
type Request struct {
	Messages    []models.Message
	Temperature float64
	MaxTokens   int
}

// Stream yields incremental deltas. Callers must Close it.
type Stream interface {
	// Next advances to the next delta, returning false at the end of the
	// stream or on failure. Err distinguishes the two.
	Next() bool
	// Delta is the newly generated text of the current chunk. It may be empty.
	Delta() string
	Err() error
	Close() error
}

// Client opens streamed completions against a provider.
type Client interface {
	// Stream sends the request. Failures to reach the provider, including
	// authentication and rate-limit rejections, are returned here rather than
	// through the stream.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ErrNoMessages is returned when a request carries no messages at all.
var ErrNoMessages = errors.New("upstream: no messages provided")

// Prime pulls the first chunk of s so that a failed request surfaces as an
// error from the caller's Stream method. The returned stream replays that
// chunk before continuing.
func Prime(s Stream) (Stream, error) {
	if s.Next() {
		return &primed{Stream: s, pending: true}, nil
	}
	if err := s.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return &primed{Stream: s, exhausted: true}, nil
}

type primed struct {
	Stream
	pending   bool
	exhausted bool
}

func (p *primed) Next() bool {
	if p.pending {
		p.pending = false
		return true
	}
	if p.exhausted {
		return false
	}
	return p.Stream.Next()
}

// WithConcurrency caps the number of streams open at once across all callers
// of the returned client. A slot is held from Stream until Close. n <= 0
// returns c unchanged.
func WithConcurrency(c Client, n int) Client {
	if n <= 0 {
		return c
	}
	slots := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		slots <- struct{}{}
	}
	return &limited{next: c, slots: slots, wait: 5 * time.Minute}
}

type limited struct {
	next  Client
	slots chan struct{}
	wait  time.Duration
}

func (l *limited) Stream(ctx context.Context, req Request) (Stream, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}

	s, err := l.next.Stream(ctx, req)
	if err != nil {
		l.release()
		return nil, err
	}
	return &slotStream{Stream: s, release: l.release}, nil
}

// acquire blocks until a slot is available
func (l *limited) acquire(ctx context.Context) error {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case <-l.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("upstream: timeout waiting for a free stream slot")
	}
}

func (l *limited) release() {
	l.slots <- struct{}{}
}

type slotStream struct {
	Stream
	release func()
	once    sync.Once
}

func (s *slotStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(s.release)
	return err
}
