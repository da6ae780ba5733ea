package chatclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// scriptedSender replays deltas then returns err. When gate is set, Send
// blocks on it after signalling started. refused skips the Open hook, as
// when the relay answers with an error status.
type scriptedSender struct {
	deltas  []string
	err     error
	refused bool
	started chan struct{}
	gate    chan struct{}

	mu   sync.Mutex
	reqs []models.RelayRequest
}

func (s *scriptedSender) Send(ctx context.Context, req models.RelayRequest, h Hooks) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.gate != nil {
		close(s.started)
		<-s.gate
	}
	if s.refused {
		return "", s.err
	}
	h.Open()
	var b strings.Builder
	for _, d := range s.deltas {
		b.WriteString(d)
		h.Delta(d)
	}
	return b.String(), s.err
}

func TestConversation_Title(t *testing.T) {
	c := NewConversation()
	assert.Equal(t, "New Chat", c.Title())
	assert.Equal(t, models.RoleAssistant, c.Messages[0].Role)
	assert.Equal(t, Greeting, c.Messages[0].Content)

	c.Messages = append(c.Messages, models.Message{Role: models.RoleUser, Content: "How should I price a SaaS product for SMBs?"})
	assert.Equal(t, "How should I price a SaaS prod...", c.Title())

	c.Messages[1].Content = "Hi"
	assert.Equal(t, "Hi...", c.Title())
}

func TestSubmit_Completed(t *testing.T) {
	sender := &scriptedSender{deltas: []string{"Hel", "lo!"}}
	var updates []TurnUpdate
	s := NewSession(sender, "Be brief.", func(u TurnUpdate) { updates = append(updates, u) })
	id := s.Current().ID

	reply, err := s.Submit(context.Background(), id, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)

	var states []TurnState
	for _, u := range updates {
		states = append(states, u.State)
	}
	assert.Equal(t, []TurnState{Sending, Streaming, Streaming, Streaming, Completed}, states)
	assert.Equal(t, "", updates[1].Text)
	assert.Equal(t, "Hel", updates[2].Text)
	assert.Equal(t, "Hello!", updates[4].Text)

	conv := s.Current()
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, models.Message{Role: models.RoleAssistant, Content: "Hello!"}, conv.Messages[2])
	assert.Equal(t, "Hi...", conv.Title())

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, "Be brief.", sender.reqs[0].SystemPrompt)
	assert.Equal(t, []models.Message{
		{Role: models.RoleAssistant, Content: Greeting},
		{Role: models.RoleUser, Content: "Hi"},
	}, sender.reqs[0].Messages)
}

func TestSubmit_RemoteErrorBecomesReply(t *testing.T) {
	sender := &scriptedSender{deltas: []string{"Par"}, err: &RemoteError{Message: "Streaming error occurred"}}
	var last TurnUpdate
	s := NewSession(sender, "", func(u TurnUpdate) { last = u })

	reply, err := s.Submit(context.Background(), s.Current().ID, "Hi")
	require.Error(t, err)
	assert.Equal(t, "Streaming error occurred", reply)
	assert.Equal(t, Failed, last.State)
	assert.Equal(t, "Streaming error occurred", s.Current().Messages[2].Content)
}

func TestSubmit_EmptyStreamStillStreams(t *testing.T) {
	sender := &scriptedSender{}
	var states []TurnState
	s := NewSession(sender, "", func(u TurnUpdate) { states = append(states, u.State) })

	reply, err := s.Submit(context.Background(), s.Current().ID, "Hi")
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Equal(t, []TurnState{Sending, Streaming, Completed}, states)
}

func TestSubmit_ErrorOnlyStreamStillStreams(t *testing.T) {
	sender := &scriptedSender{err: &RemoteError{Message: "Streaming error occurred"}}
	var states []TurnState
	s := NewSession(sender, "", func(u TurnUpdate) { states = append(states, u.State) })

	reply, err := s.Submit(context.Background(), s.Current().ID, "Hi")
	require.Error(t, err)
	assert.Equal(t, "Streaming error occurred", reply)
	assert.Equal(t, []TurnState{Sending, Streaming, Failed}, states)
}

func TestSubmit_TransportFailureUsesApology(t *testing.T) {
	sender := &scriptedSender{err: &StatusError{StatusCode: 500}, refused: true}
	var states []TurnState
	s := NewSession(sender, "", func(u TurnUpdate) { states = append(states, u.State) })

	reply, err := s.Submit(context.Background(), s.Current().ID, "Hi")
	require.Error(t, err)
	assert.Equal(t, FailureReply, reply)
	assert.Equal(t, FailureReply, s.Current().Messages[2].Content)
	assert.Equal(t, []TurnState{Sending, Failed}, states)
}

func TestSubmit_TruncatedKeepsPartial(t *testing.T) {
	sender := &scriptedSender{deltas: []string{"Part"}, err: ErrStreamTruncated}
	s := NewSession(sender, "", nil)

	reply, err := s.Submit(context.Background(), s.Current().ID, "Hi")
	assert.ErrorIs(t, err, ErrStreamTruncated)
	assert.Equal(t, "Part", reply)
}

func TestSubmit_TurnInProgress(t *testing.T) {
	sender := &scriptedSender{deltas: []string{"ok"}, started: make(chan struct{}), gate: make(chan struct{})}
	s := NewSession(sender, "", nil)
	id := s.Current().ID

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), id, "first")
		done <- err
	}()
	<-sender.started

	_, err := s.Submit(context.Background(), id, "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(sender.gate)
	require.NoError(t, <-done)
	assert.Len(t, s.Current().Messages, 3)
}

func TestSubmit_ConversationsAreIndependent(t *testing.T) {
	sender := &scriptedSender{deltas: []string{"ok"}}
	s := NewSession(sender, "", nil)
	first := s.Current().ID

	second := s.NewConversation()
	assert.NotEqual(t, first, second.ID)
	assert.Equal(t, second.ID, s.Current().ID)

	_, err := s.Submit(context.Background(), second.ID, "Hello there")
	require.NoError(t, err)

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Len(t, convs[0].Messages, 1)
	assert.Len(t, convs[1].Messages, 3)

	require.NoError(t, s.Switch(0))
	assert.Equal(t, first, s.Current().ID)
	assert.Error(t, s.Switch(5))
}

func TestSubmit_Rejections(t *testing.T) {
	s := NewSession(&scriptedSender{}, "", nil)

	_, err := s.Submit(context.Background(), s.Current().ID, "   ")
	assert.Error(t, err)

	_, err = s.Submit(context.Background(), "missing", "hi")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTurnInProgress))
}

func TestTurnState_String(t *testing.T) {
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "TurnState(9)", TurnState(9).String())
}
