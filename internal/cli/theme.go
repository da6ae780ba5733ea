package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Theme renders the conversation on a terminal.
type Theme interface {
	// Prompt is shown before the user types a message.
	Prompt() string
	// Start is called when a turn is sent.
	Start(w io.Writer)
	// Delta receives each new fragment together with the reply so far.
	Delta(w io.Writer, delta, sofar string)
	Done(w io.Writer, reply string)
	Failed(w io.Writer, reply string, err error)
	Notice(w io.Writer, msg string)
}

// PlainTheme prints raw tokens as they arrive.
type PlainTheme struct{}

func (PlainTheme) Prompt() string { return "you> " }

func (PlainTheme) Start(w io.Writer) { fmt.Fprint(w, "assistant> ") }

func (PlainTheme) Delta(w io.Writer, delta, _ string) { fmt.Fprint(w, delta) }

func (PlainTheme) Done(w io.Writer, _ string) { fmt.Fprintln(w) }

func (PlainTheme) Failed(w io.Writer, reply string, err error) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "error: %s\n", reply)
}

func (PlainTheme) Notice(w io.Writer, msg string) { fmt.Fprintln(w, msg) }

// StyledTheme colors the role labels, shows progress while the reply
// streams and prints the finished reply rendered as markdown.
type StyledTheme struct {
	renderer *glamour.TermRenderer

	user      lipgloss.Style
	assistant lipgloss.Style
	faint     lipgloss.Style
	failure   lipgloss.Style
}

func NewStyledTheme(width int) (*StyledTheme, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}

	return &StyledTheme{
		renderer:  renderer,
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		faint:     lipgloss.NewStyle().Faint(true),
		failure:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}, nil
}

func (t *StyledTheme) Prompt() string { return t.user.Render("you") + " ▸ " }

func (t *StyledTheme) Start(w io.Writer) {
	fmt.Fprint(w, t.assistant.Render("assistant")+" ▸ "+t.faint.Render("thinking…"))
}

func (t *StyledTheme) Delta(w io.Writer, _, sofar string) {
	status := fmt.Sprintf("receiving… %d chars", len([]rune(sofar)))
	fmt.Fprint(w, "\r\033[K"+t.assistant.Render("assistant")+" ▸ "+t.faint.Render(status))
}

func (t *StyledTheme) Done(w io.Writer, reply string) {
	fmt.Fprintln(w, "\r\033[K"+t.assistant.Render("assistant")+" ▸")
	fmt.Fprint(w, t.render(reply))
}

func (t *StyledTheme) Failed(w io.Writer, reply string, err error) {
	fmt.Fprintln(w, "\r\033[K"+t.failure.Render("error")+" ▸ "+reply)
}

func (t *StyledTheme) Notice(w io.Writer, msg string) { fmt.Fprintln(w, t.faint.Render(msg)) }

func (t *StyledTheme) render(md string) string {
	out, err := t.renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// ThemeByName resolves the --theme flag.
func ThemeByName(name string, width int) (Theme, error) {
	switch strings.ToLower(name) {
	case "", "plain":
		return PlainTheme{}, nil
	case "styled":
		return NewStyledTheme(width)
	}
	return nil, fmt.Errorf("unknown theme %q (want plain or styled)", name)
}
