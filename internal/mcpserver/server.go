// Package mcpserver exposes the chat session as MCP tools over stdio.
package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/evo-go/internal/logger"
	"github.com/comigor/evo-go/internal/session"
)

// slowCallThreshold is the duration above which tool calls are logged at WARN level.
const slowCallThreshold = 5 * time.Second

// New creates an MCP server with every chat tool registered.
func New(ctrl *session.Controller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"evo",
		version,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(loggingMiddleware),
	)
	RegisterAll(s, NewTools(ctrl))
	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	logger.L.Info("starting MCP server", "transport", "stdio")
	return server.ServeStdio(s)
}

func loggingMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		duration := time.Since(start)

		attrs := []any{"tool", req.Params.Name, "duration_ms", duration.Milliseconds()}
		switch {
		case err != nil:
			logger.L.Error("tool call failed", append(attrs, "error", err)...)
		case res != nil && res.IsError:
			logger.L.Info("tool call rejected", attrs...)
		case duration > slowCallThreshold:
			logger.L.Warn("slow tool call", attrs...)
		default:
			logger.L.Debug("tool call completed", attrs...)
		}
		return res, err
	}
}
