// Package deepseek streams chat completions from DeepSeek. The DeepSeek API is
// OpenAI-compatible, so the OpenAI SDK is used with a custom base URL.
package deepseek

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
)

// Ensure Client implements upstream.Client.
var _ upstream.Client = (*Client)(nil)

// Config holds configuration for the DeepSeek client.
type Config struct {
	APIKey  string
	BaseURL string // optional, defaults to DefaultBaseURL
	Model   string // optional, defaults to DefaultModel
	// MaxRetries overrides the SDK's retry count when non-nil.
	MaxRetries *int
	HTTPClient *http.Client
}

// Client wraps an OpenAI SDK client pointed at DeepSeek.
type Client struct {
	client  openai.Client
	model   string
	baseURL string
}

// New creates a Client. An API key is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepseek: api key required")
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   model,
		baseURL: baseURL,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Stream opens a streamed chat completion.
func (c *Client) Stream(ctx context.Context, req upstream.Request) (upstream.Stream, error) {
	if len(req.Messages) == 0 {
		return nil, upstream.ErrNoMessages
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    toParams(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	s, err := upstream.Prime(&stream{s: c.client.Chat.Completions.NewStreaming(ctx, params)})
	if err != nil {
		return nil, fmt.Errorf("deepseek: open stream: %w", err)
	}
	return s, nil
}

func toParams(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

type stream struct {
	s *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *stream) Next() bool { return s.s.Next() }

func (s *stream) Delta() string {
	chunk := s.s.Current()
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func (s *stream) Err() error { return s.s.Err() }

func (s *stream) Close() error { return s.s.Close() }
