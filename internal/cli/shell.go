package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anshumansp/Business-Consultant-Agent/internal/chatclient"
)

// Shell is the CLI composition root: one auth strategy, one theme.
type Shell struct {
	Auth  AuthProvider
	Theme Theme

	Client       *chatclient.Client
	SystemPrompt string
	In           io.Reader
	Out          io.Writer
}

// NewClient wires the auth strategy into the relay client.
func (s *Shell) NewClient(base chatclient.Client) *chatclient.Client {
	c := base
	c.Credentials = s.Auth.Credentials()
	c.Login = s.Auth.Login
	return &c
}

func (s *Shell) newSession() *chatclient.Session {
	var sofar int
	return chatclient.NewSession(s.Client, s.SystemPrompt, func(u chatclient.TurnUpdate) {
		switch u.State {
		case chatclient.Sending:
			sofar = 0
			s.Theme.Start(s.Out)
		case chatclient.Streaming:
			if len(u.Text) == sofar {
				return
			}
			s.Theme.Delta(s.Out, u.Text[sofar:], u.Text)
			sofar = len(u.Text)
		case chatclient.Completed:
			s.Theme.Done(s.Out, u.Text)
		case chatclient.Failed:
			s.Theme.Failed(s.Out, u.Text, u.Err)
		}
	})
}

// Ask sends a single message in a fresh conversation.
func (s *Shell) Ask(ctx context.Context, message string) error {
	session := s.newSession()
	_, err := session.Submit(ctx, session.Current().ID, message)
	return err
}

// Health checks that the relay is up.
func (s *Shell) Health(ctx context.Context) error {
	h, err := s.Client.Health(ctx)
	if err != nil {
		return err
	}
	s.Theme.Notice(s.Out, fmt.Sprintf("relay status: %s", h.Status))
	return nil
}

// Chat runs the interactive loop until EOF or /quit.
func (s *Shell) Chat(ctx context.Context) error {
	session := s.newSession()
	s.Theme.Notice(s.Out, "Commands: /new, /list, /switch <n>, /quit")
	s.greet()

	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(s.Out, s.Theme.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(s.Out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			session.NewConversation()
			s.greet()
		case line == "/list":
			s.list(session)
		case strings.HasPrefix(line, "/switch"):
			s.switchTo(session, strings.TrimSpace(strings.TrimPrefix(line, "/switch")))
		case strings.HasPrefix(line, "/"):
			s.Theme.Notice(s.Out, fmt.Sprintf("unknown command %s", line))
		default:
			if err := ctx.Err(); err != nil {
				return err
			}
			// Failures are shown by the theme; the loop keeps going.
			session.Submit(ctx, session.Current().ID, line)
		}
	}
}

func (s *Shell) greet() {
	s.Theme.Start(s.Out)
	s.Theme.Delta(s.Out, chatclient.Greeting, chatclient.Greeting)
	s.Theme.Done(s.Out, chatclient.Greeting)
}

func (s *Shell) list(session *chatclient.Session) {
	current := session.Current().ID
	for i, c := range session.Conversations() {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		s.Theme.Notice(s.Out, fmt.Sprintf("%s %d. %s", marker, i+1, c.Title()))
	}
}

func (s *Shell) switchTo(session *chatclient.Session, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		s.Theme.Notice(s.Out, "usage: /switch <n>")
		return
	}
	if err := session.Switch(n - 1); err != nil {
		s.Theme.Notice(s.Out, err.Error())
		return
	}
	current := session.Current()
	s.Theme.Notice(s.Out, fmt.Sprintf("switched to %d. %s", n, current.Title()))
}
