// Package upstreamtest provides a scripted upstream.Client for tests.
package upstreamtest

import (
	"context"
	"sync"

	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream"
)

// Fake replays Deltas. When FailAfter >= 0 the stream fails with StreamErr
// after that many deltas. OpenErr makes Stream itself fail. Stall keeps the
// stream open after the last delta until its context ends.
type Fake struct {
	Deltas    []string
	FailAfter int
	StreamErr error
	OpenErr   error
	Stall     bool

	mu       sync.Mutex
	requests []upstream.Request
	closed   int
}

// NewFake returns a Fake that yields deltas and ends cleanly.
func NewFake(deltas ...string) *Fake {
	return &Fake{Deltas: deltas, FailAfter: -1}
}

func (f *Fake) Stream(ctx context.Context, req upstream.Request) (upstream.Stream, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return &fakeStream{ctx: ctx, fake: f, pos: -1}, nil
}

// Requests returns every request received so far.
func (f *Fake) Requests() []upstream.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.Request(nil), f.requests...)
}

// Closed returns how many streams were closed.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeStream struct {
	ctx  context.Context
	fake *Fake
	pos  int
	err  error
}

func (s *fakeStream) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	next := s.pos + 1
	if s.fake.FailAfter >= 0 && next >= s.fake.FailAfter {
		s.err = s.fake.StreamErr
		return false
	}
	if next >= len(s.fake.Deltas) {
		if s.fake.Stall {
			<-s.ctx.Done()
			s.err = s.ctx.Err()
		}
		return false
	}
	s.pos = next
	return true
}

func (s *fakeStream) Delta() string { return s.fake.Deltas[s.pos] }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close() error {
	s.fake.mu.Lock()
	s.fake.closed++
	s.fake.mu.Unlock()
	return nil
}
