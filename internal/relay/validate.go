package relay

import (
	"bytes"
	"encoding/json"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// ValidationError rejects a request before any upstream call is made.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// Validate decodes a relay request body. messages must be a JSON array of
// {role, content} objects; systemPrompt, when present, must be a string.
func Validate(body []byte) (models.RelayRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return models.RelayRequest{}, &ValidationError{Message: MsgInvalidMessages}
	}
	if !json.Valid(body) {
		return models.RelayRequest{}, &ValidationError{Message: MsgMalformedBody}
	}

	// Any well-formed body that is not an object simply lacks messages.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.RelayRequest{}, &ValidationError{Message: MsgInvalidMessages}
	}

	raw, ok := fields["messages"]
	if !ok || !isKind(raw, '[') {
		return models.RelayRequest{}, &ValidationError{Message: MsgInvalidMessages}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return models.RelayRequest{}, &ValidationError{Message: MsgInvalidMessages}
	}

	req := models.RelayRequest{Messages: make([]models.Message, 0, len(elems))}
	for _, elem := range elems {
		m, ok := decodeMessage(elem)
		if !ok {
			return models.RelayRequest{}, &ValidationError{Message: MsgInvalidMessage}
		}
		req.Messages = append(req.Messages, m)
	}

	if p, ok := fields["systemPrompt"]; ok && !isNull(p) {
		if err := json.Unmarshal(p, &req.SystemPrompt); err != nil {
			return models.RelayRequest{}, &ValidationError{Message: MsgInvalidPrompt}
		}
	}
	return req, nil
}

func decodeMessage(raw json.RawMessage) (models.Message, bool) {
	if !isKind(raw, '{') {
		return models.Message{}, false
	}
	var m struct {
		Role    *string `json:"role"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(raw, &m); err != nil || m.Role == nil || m.Content == nil {
		return models.Message{}, false
	}
	role := models.Role(*m.Role)
	if !role.Valid() {
		return models.Message{}, false
	}
	return models.Message{Role: role, Content: *m.Content}, true
}

func isKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
