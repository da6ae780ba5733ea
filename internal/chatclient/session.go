package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// TurnState is the lifecycle of one user turn.
type TurnState int

const (
	Idle TurnState = iota
	Sending
	Streaming
	Completed
	Failed
)

func (s TurnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("TurnState(%d)", int(s))
}

// TurnUpdate reports progress of a turn. Text is the assistant reply so far.
type TurnUpdate struct {
	ConversationID string
	State          TurnState
	Text           string
	Err            error
}

// Sender relays one conversation. *Client implements it.
type Sender interface {
	Send(ctx context.Context, req models.RelayRequest, h Hooks) (string, error)
}

// Session holds independent conversations and enforces one outstanding turn
// per conversation.
type Session struct {
	sender       Sender
	systemPrompt string
	onUpdate     func(TurnUpdate)

	mu            sync.Mutex
	conversations []*Conversation
	current       int
	inFlight      map[string]bool
}

// NewSession starts with a single fresh conversation. onUpdate may be nil.
func NewSession(sender Sender, systemPrompt string, onUpdate func(TurnUpdate)) *Session {
	return &Session{
		sender:        sender,
		systemPrompt:  systemPrompt,
		onUpdate:      onUpdate,
		conversations: []*Conversation{NewConversation()},
		inFlight:      make(map[string]bool),
	}
}

// NewConversation adds a conversation and makes it current.
func (s *Session) NewConversation() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := NewConversation()
	s.conversations = append(s.conversations, c)
	s.current = len(s.conversations) - 1
	return c.clone()
}

// Conversations returns snapshots in creation order.
func (s *Session) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.clone()
	}
	return out
}

// Current returns a snapshot of the current conversation.
func (s *Session) Current() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[s.current].clone()
}

// Switch makes the i-th conversation (0-based) current.
func (s *Session) Switch(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.conversations) {
		return fmt.Errorf("chatclient: no conversation %d", i+1)
	}
	s.current = i
	return nil
}

// Submit sends text as a user turn on the conversation with id and blocks
// until the turn completes or fails. The assistant reply is recorded in the
// conversation either way.
func (s *Session) Submit(ctx context.Context, id, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("chatclient: empty message")
	}

	s.mu.Lock()
	conv := s.find(id)
	if conv == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("chatclient: unknown conversation %q", id)
	}
	if s.inFlight[id] {
		s.mu.Unlock()
		return "", ErrTurnInProgress
	}
	s.inFlight[id] = true
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleUser, Content: text})
	req := models.RelayRequest{
		Messages:     append([]models.Message(nil), conv.Messages...),
		SystemPrompt: s.systemPrompt,
	}
	reply := len(conv.Messages)
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleAssistant})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}()

	s.emit(TurnUpdate{ConversationID: id, State: Sending})

	var partial strings.Builder
	full, err := s.sender.Send(ctx, req, Hooks{
		Open: func() {
			s.emit(TurnUpdate{ConversationID: id, State: Streaming})
		},
		Delta: func(delta string) {
			partial.WriteString(delta)
			s.setReply(conv, reply, partial.String())
			s.emit(TurnUpdate{ConversationID: id, State: Streaming, Text: partial.String()})
		},
	})

	if err == nil {
		s.setReply(conv, reply, full)
		s.emit(TurnUpdate{ConversationID: id, State: Completed, Text: full})
		return full, nil
	}

	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		full = remote.Message
	case errors.Is(err, ErrStreamTruncated) && full != "":
		// Keep what arrived.
	default:
		full = FailureReply
	}
	s.setReply(conv, reply, full)
	s.emit(TurnUpdate{ConversationID: id, State: Failed, Text: full, Err: err})
	return full, err
}

func (s *Session) find(id string) *Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Session) setReply(conv *Conversation, i int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.Messages[i].Content = text
}

func (s *Session) emit(u TurnUpdate) {
	if s.onUpdate != nil {
		s.onUpdate(u)
	}
}
