package cli

import (
	"github.com/spf13/cobra"

	"github.com/comigor/evo-go/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the chat session as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.Serve(mcpserver.New(ctrl, Version))
	},
}
