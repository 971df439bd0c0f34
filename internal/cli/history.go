package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comigor/evo-go/internal/session"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the current conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := ctrl.Share(historyFormat)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List saved chats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		newREPL(ctrl, cmd.OutOrStdout()).printSaved(ctrl.SavedSessions())
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", session.FormatText, "output format: text, json or yaml")
}
