// Package chatclient consumes the relay's event stream: it posts a
// conversation, assembles the streamed reply and tracks per-turn state.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

const DefaultEndpoint = "http://localhost:3001/api/chat"

var (
	// ErrStreamTruncated means the stream ended without a terminal marker.
	ErrStreamTruncated = errors.New("chatclient: stream ended before [DONE]")
	ErrTurnInProgress  = errors.New("chatclient: a turn is already in progress for this conversation")
)

// Credentials supplies the bearer token sent with each request. An empty
// token sends no Authorization header.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// LoginFunc is called once when the relay answers 401, before the request is
// retried. It typically refreshes what Credentials returns.
type LoginFunc func(ctx context.Context, kind authn.Kind) error

// StatusError is a non-success HTTP response from the relay.
type StatusError struct {
	StatusCode int
	Message    string
	Detail     string
	// Kind is set on 401 responses.
	Kind authn.Kind
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("chatclient: relay returned %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// RemoteError is an error frame received mid-stream.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "chatclient: relay reported: " + e.Message }

type Client struct {
	Endpoint    string
	HTTPClient  *http.Client
	Credentials Credentials
	Login       LoginFunc
	Logger      *log.Logger
}

// Hooks observe a streamed reply. Nil fields are skipped.
type Hooks struct {
	// Open is called once the relay accepted the request and the stream
	// is about to be read.
	Open func()
	// Delta receives every content fragment as it arrives.
	Delta func(string)
}

// Send posts req and reports progress through h. It returns the assembled
// reply. A *RemoteError is returned together with the text received before
// it.
func (c *Client) Send(ctx context.Context, req models.RelayRequest, h Hooks) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("chatclient: encode request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if h.Open != nil {
		h.Open()
	}
	return readStream(resp.Body, c.logger(), h.Delta)
}

// Health calls GET / on the relay host.
func (c *Client) Health(ctx context.Context) (models.HealthResponse, error) {
	var out models.HealthResponse

	u, err := healthURL(c.endpoint())
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return out, fmt.Errorf("chatclient: health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("chatclient: decode health: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.Login != nil {
		serr := statusError(resp)
		resp.Body.Close()

		if err := c.Login(ctx, serr.Kind); err != nil {
			return nil, fmt.Errorf("chatclient: login: %w", err)
		}
		if resp, err = c.do(ctx, body); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	if c.Credentials != nil {
		token, err := c.Credentials.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("chatclient: credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatclient: post: %w", err)
	}
	return resp, nil
}

func (c *Client) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// The default client has no overall timeout since replies stream for as
// long as the model generates.
var defaultHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 2 * time.Minute,
	},
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return defaultHTTPClient
	}
	return c.HTTPClient
}

func (c *Client) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func statusError(resp *http.Response) *StatusError {
	serr := &StatusError{StatusCode: resp.StatusCode, Message: resp.Status}

	var body models.ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		serr.Message = body.Message
		serr.Detail = body.Error
	}
	if resp.StatusCode == http.StatusUnauthorized {
		serr.Kind = authn.ParseKind(body.Error)
	}
	return serr
}
