package chatclient

import (
	"github.com/google/uuid"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

const (
	Greeting = "👋 Hello! I'm your AI Business and Technology Advisor. I can help you with: " +
		"Business Strategy, Market Analysis, Technical Architecture, Project Management, " +
		"How can I assist you today?"

	// FailureReply replaces the assistant message when a turn fails before
	// streaming.
	FailureReply = "I apologize, but I encountered an error. Please try again."

	untitled    = "New Chat"
	titleLength = 30
)

// Conversation is one independent chat thread.
type Conversation struct {
	ID       string
	Messages []models.Message
}

// NewConversation starts a thread with the assistant greeting.
func NewConversation() *Conversation {
	return &Conversation{
		ID:       uuid.NewString(),
		Messages: []models.Message{{Role: models.RoleAssistant, Content: Greeting}},
	}
}

// Title is derived from the first message after the greeting.
func (c *Conversation) Title() string {
	if len(c.Messages) < 2 {
		return untitled
	}
	r := []rune(c.Messages[1].Content)
	if len(r) > titleLength {
		r = r[:titleLength]
	}
	return string(r) + "..."
}

func (c *Conversation) clone() Conversation {
	return Conversation{
		ID:       c.ID,
		Messages: append([]models.Message(nil), c.Messages...),
	}
}
