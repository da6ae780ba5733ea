package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Start an interactive chat with the advisor. Each line is sent as a
user turn and the reply streams back as it is generated.

Commands:
  /new         start a new conversation
  /list        list conversations
  /switch <n>  switch to conversation n
  /quit        exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newShell(cmd, v)
			if err != nil {
				return err
			}
			return s.Chat(cmd.Context())
		},
	}
}

func newAskCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newShell(cmd, v)
			if err != nil {
				return err
			}
			return s.Ask(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func newHealthCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the relay is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newShell(cmd, v)
			if err != nil {
				return err
			}
			return s.Health(cmd.Context())
		},
	}
}
