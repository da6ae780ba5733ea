// Package cli is the terminal client for the chat relay.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anshumansp/Business-Consultant-Agent/internal/chatclient"
)

const defaultSystemPrompt = "You are a helpful business and technology advisor."

// NewRootCmd builds the command tree. Settings come from flags, CHAT_*
// environment variables and an optional TOML config file, in that order of
// precedence.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "advisor",
		Short:         "Terminal client for the business advisor chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (TOML)")
	flags.String("endpoint", chatclient.DefaultEndpoint, "relay chat endpoint")
	flags.String("system-prompt", "", "system prompt sent with every turn")
	flags.String("prompt-file", "", "TOML file with a system = \"...\" prompt")
	flags.String("token", "", "bearer token for the relay")
	flags.String("token-command", "", "shell command that prints a bearer token")
	flags.String("theme", "plain", "output theme: plain or styled")
	flags.Int("width", 80, "word wrap width for the styled theme")
	flags.String("log-level", "warn", "log level")
	for _, name := range []string{"endpoint", "system-prompt", "prompt-file", "token", "token-command", "theme", "width", "log-level"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newChatCmd(v),
		newAskCmd(v),
		newHealthCmd(v),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	rootCmd := NewRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// newShell assembles the shell from the resolved settings.
func newShell(cmd *cobra.Command, v *viper.Viper) (*Shell, error) {
	prompt, err := systemPrompt(v)
	if err != nil {
		return nil, err
	}

	theme, err := ThemeByName(v.GetString("theme"), v.GetInt("width"))
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "advisor"})
	if lvl, err := log.ParseLevel(v.GetString("log-level")); err == nil {
		logger.SetLevel(lvl)
	}

	s := &Shell{
		Auth:         authProvider(v),
		Theme:        theme,
		SystemPrompt: prompt,
		In:           cmd.InOrStdin(),
		Out:          cmd.OutOrStdout(),
	}
	s.Client = s.NewClient(chatclient.Client{
		Endpoint: v.GetString("endpoint"),
		Logger:   logger,
	})
	return s, nil
}

func systemPrompt(v *viper.Viper) (string, error) {
	if p := v.GetString("system-prompt"); p != "" {
		return p, nil
	}
	if path := v.GetString("prompt-file"); path != "" {
		p, err := LoadPrompt(path)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(p.System) != "" {
			return p.System, nil
		}
	}
	return defaultSystemPrompt, nil
}

func authProvider(v *viper.Viper) AuthProvider {
	switch {
	case v.GetString("token-command") != "":
		return &CommandAuth{Command: v.GetString("token-command")}
	case v.GetString("token") != "":
		return TokenAuth{Token: v.GetString("token")}
	}
	return NoAuth{}
}
