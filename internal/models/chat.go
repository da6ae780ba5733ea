package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the recognised roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RelayRequest is the payload sent to the chat relay endpoint.
type RelayRequest struct {
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"systemPrompt"`
}

// ErrorBody is the JSON body of every non-streaming error response.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status string `json:"status"`
}
