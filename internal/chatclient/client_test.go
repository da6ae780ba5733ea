package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/handlers"
	"github.com/anshumansp/Business-Consultant-Agent/internal/logger"
	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
	"github.com/anshumansp/Business-Consultant-Agent/internal/relay"
	"github.com/anshumansp/Business-Consultant-Agent/internal/upstream/upstreamtest"
)

func hello() models.RelayRequest {
	return models.RelayRequest{Messages: []models.Message{{Role: models.RoleUser, Content: "Hi"}}}
}

// rawServer writes chunks verbatim, flushing after each one.
func rawServer(t *testing.T, status int, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		for _, c := range chunks {
			io.WriteString(w, c)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(url string) *Client {
	return &Client{Endpoint: url, Logger: logger.Discard()}
}

func TestSend_AgainstRelay(t *testing.T) {
	h := handlers.NewChatHandler(relay.New(upstreamtest.NewFake("Hel", "lo!"), relay.DefaultOptions()), logger.Discard())
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	var deltas []string
	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{Delta: func(d string) { deltas = append(deltas, d) }})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
	assert.Equal(t, []string{"Hel", "lo!"}, deltas)
}

func TestSend_LinesSplitAcrossReads(t *testing.T) {
	srv := rawServer(t, http.StatusOK,
		"data: {\"cont", "ent\":\"Hel\"}\n", "\ndata: {\"content\":\"lo\"}\n\nda", "ta: [DONE]\n\n")

	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestSend_SkipsMalformedAndForeignLines(t *testing.T) {
	srv := rawServer(t, http.StatusOK,
		": keep-alive\n\nevent: ping\ndata: not-json\n\ndata: {\"content\":\"ok\"}\n\ndata: [DONE]\n\n")

	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestSend_ErrorFrame(t *testing.T) {
	srv := rawServer(t, http.StatusOK,
		"data: {\"content\":\"Par\"}\n\ndata: {\"error\":\"Streaming error occurred\"}\n\ndata: [DONE]\n\n")

	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Streaming error occurred", remote.Message)
	assert.Equal(t, "Par", text)
}

func TestSend_Truncated(t *testing.T) {
	srv := rawServer(t, http.StatusOK, "data: {\"content\":\"Par\"}\n\n")

	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{})
	assert.ErrorIs(t, err, ErrStreamTruncated)
	assert.Equal(t, "Par", text)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorBody{Message: relay.MsgInvalidMessages})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, relay.MsgInvalidMessages, serr.Message)
}

func TestSend_OpenFiresBeforeFirstFrame(t *testing.T) {
	srv := rawServer(t, http.StatusOK, "data: [DONE]\n\n")

	var events []string
	text, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{
		Open:  func() { events = append(events, "open") },
		Delta: func(d string) { events = append(events, d) },
	})
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, []string{"open"}, events)
}

func TestSend_OpenFiresForErrorOnlyStream(t *testing.T) {
	srv := rawServer(t, http.StatusOK, "data: {\"error\":\"Streaming error occurred\"}\n\ndata: [DONE]\n\n")

	opened := 0
	_, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{Open: func() { opened++ }})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 1, opened)
}

func TestSend_OpenSkippedOnErrorStatus(t *testing.T) {
	srv := rawServer(t, http.StatusInternalServerError, "{\"message\":\"Failed to process request\"}")

	opened := false
	_, err := newClient(srv.URL).Send(context.Background(), hello(), Hooks{Open: func() { opened = true }})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.False(t, opened)
}

func TestSend_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).Send(context.Background(), hello(), Hooks{})
	require.Error(t, err)
}

type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) Token(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, nil
}

func (b *tokenBox) set(t string) {
	b.mu.Lock()
	b.token = t
	b.mu.Unlock()
}

func TestSend_LoginRetry(t *testing.T) {
	a := authn.NewJWT("secret")
	valid, err := a.Issue("user-1", time.Hour)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		token, err := authn.BearerToken(r.Header.Get("Authorization"))
		if err == nil {
			_, err = a.Authenticate(r.Context(), token)
		}
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(models.ErrorBody{Message: "Unauthorized", Error: string(authn.KindOf(err))})
			return
		}
		io.WriteString(w, "data: {\"content\":\"welcome\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	creds := &tokenBox{}
	var seenKind authn.Kind
	c := newClient(srv.URL)
	c.Credentials = creds
	c.Login = func(ctx context.Context, kind authn.Kind) error {
		seenKind = kind
		creds.set(valid)
		return nil
	}

	text, err := c.Send(context.Background(), hello(), Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "welcome", text)
	assert.Equal(t, authn.KindMissingCredentials, seenKind)
	assert.EqualValues(t, 2, hits.Load())
}

func TestSend_LoginRetriedOnlyOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"Unauthorized","error":"token_expired"}`)
	}))
	defer srv.Close()

	var logins int
	c := newClient(srv.URL)
	c.Credentials = StaticToken("stale")
	c.Login = func(context.Context, authn.Kind) error { logins++; return nil }

	_, err := c.Send(context.Background(), hello(), Hooks{})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, authn.KindTokenExpired, serr.Kind)
	assert.Equal(t, 1, logins)
	assert.EqualValues(t, 2, hits.Load())
}

func TestSend_LoginFails(t *testing.T) {
	srv := rawServer(t, http.StatusUnauthorized, `{"message":"Unauthorized","error":"weird"}`)

	c := newClient(srv.URL)
	c.Login = func(_ context.Context, kind authn.Kind) error {
		assert.Equal(t, authn.KindUnknown, kind)
		return errors.New("no account")
	}
	_, err := c.Send(context.Background(), hello(), Hooks{})
	assert.ErrorContains(t, err, "login: no account")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		handlers.Health(w, r)
	}))
	defer srv.Close()

	got, err := newClient(srv.URL + "/api/chat").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Status)
}

func TestHealthURL(t *testing.T) {
	u, err := healthURL("http://localhost:3001/api/chat")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001/", u)

	_, err = healthURL("localhost")
	assert.Error(t, err)
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{StatusCode: 500, Message: "An error occurred while processing your request", Detail: "boom"}
	assert.True(t, strings.Contains(err.Error(), "500"))
	assert.True(t, strings.Contains(err.Error(), "(boom)"))
}
