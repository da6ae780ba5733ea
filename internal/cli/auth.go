package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/chatclient"
)

// AuthProvider supplies the bearer token and handles a 401 from the relay.
type AuthProvider interface {
	Credentials() chatclient.Credentials
	Login(ctx context.Context, kind authn.Kind) error
}

// NoAuth sends no credentials.
type NoAuth struct{}

func (NoAuth) Credentials() chatclient.Credentials { return nil }

func (NoAuth) Login(_ context.Context, kind authn.Kind) error {
	return fmt.Errorf("relay requires authentication (%s); pass --token or --token-command", kind)
}

// TokenAuth sends a fixed token.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Credentials() chatclient.Credentials { return chatclient.StaticToken(a.Token) }

func (a TokenAuth) Login(_ context.Context, kind authn.Kind) error {
	return fmt.Errorf("relay rejected the token (%s); supply a fresh one with --token", kind)
}

// CommandAuth obtains tokens by running a shell command and caches the
// result until the relay rejects it.
type CommandAuth struct {
	Command string

	mu    sync.Mutex
	token string
}

func (a *CommandAuth) Credentials() chatclient.Credentials { return a }

func (a *CommandAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		if err := a.refresh(ctx); err != nil {
			return "", err
		}
	}
	return a.token, nil
}

func (a *CommandAuth) Login(ctx context.Context, _ authn.Kind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh(ctx)
}

func (a *CommandAuth) refresh(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", a.Command).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return fmt.Errorf("token command failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return fmt.Errorf("token command failed: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return errors.New("token command printed nothing")
	}
	a.token = token
	return nil
}
