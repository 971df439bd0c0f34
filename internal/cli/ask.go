package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Send one message and print the reply",
	Long: `Send one message to the assistant and print the reply.

The exchange is appended to the current conversation, as if it had been
typed into evo chat.

Examples:
  evo ask "What is the capital of France?"
  evo ask summarise the last answer`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := ctrl.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return errors.New(strings.TrimPrefix(ctrl.DisplayMessage(err), "Error: "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}
