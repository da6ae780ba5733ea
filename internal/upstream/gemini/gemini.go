// Package gemini streams chat completions from Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream"
)

const DefaultModel = "gemini-1.5-flash"

var _ upstream.Client = (*Client)(nil)

// ErrNoUserTurn is returned when the conversation does not end with a user message.
var ErrNoUserTurn = errors.New("gemini: conversation must end with a user message")

type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Stream opens a chat session seeded with the conversation history and
// streams the reply to its final user message.
func (c *Client) Stream(ctx context.Context, req upstream.Request) (upstream.Stream, error) {
	if len(req.Messages) == 0 {
		return nil, upstream.ErrNoMessages
	}

	system, history, last, err := splitConversation(req.Messages)
	if err != nil {
		return nil, err
	}

	// Models are cheap handles; one per request keeps settings isolated.
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	cs.History = history

	s, err := upstream.Prime(&stream{iter: cs.SendMessageStream(ctx, genai.Text(last))})
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	return s, nil
}

// splitConversation folds system messages into one instruction, maps the
// remaining turns onto Gemini roles and separates the final user message.
// Consecutive turns from the same role are merged and leading model turns
// are dropped, since Gemini history must start with a user turn and alternate.
func splitConversation(messages []models.Message) (system string, history []*genai.Content, last string, err error) {
	var systemParts []string
	var turns []*genai.Content

	for _, m := range messages {
		if m.Role == models.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				systemParts = append(systemParts, s)
			}
			continue
		}

		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		if len(turns) == 0 && role == "model" {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			prev := string(turns[n-1].Parts[0].(genai.Text))
			turns[n-1].Parts[0] = genai.Text(prev + "\n\n" + m.Content)
			continue
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != "user" {
		return "", nil, "", ErrNoUserTurn
	}

	final := turns[len(turns)-1]
	return strings.Join(systemParts, "\n\n"), turns[:len(turns)-1], string(final.Parts[0].(genai.Text)), nil
}

type stream struct {
	iter *genai.GenerateContentResponseIterator
	resp *genai.GenerateContentResponse
	err  error
	done bool
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}
	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		s.done = true
		return false
	}
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	s.resp = resp
	return true
}

func (s *stream) Delta() string {
	if s.resp == nil {
		return ""
	}
	return extractText(s.resp)
}

func (s *stream) Err() error { return s.err }

// Close is a no-op; the iterator releases its connection when exhausted or
// when the request context ends.
func (s *stream) Close() error { return nil }

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
