package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/evo-go/internal/history"
	"github.com/comigor/evo-go/internal/session"
)

// Tools holds the handlers backing each chat tool.
type Tools struct {
	ctrl *session.Controller
}

// NewTools binds tool handlers to ctrl.
func NewTools(ctrl *session.Controller) *Tools {
	return &Tools{ctrl: ctrl}
}

// RegisterAll registers every chat tool with s.
func RegisterAll(s *server.MCPServer, t *Tools) {
	s.AddTool(mcp.NewTool("chat_send",
		mcp.WithDescription("Send a message to the assistant and return its reply"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	), t.Send)

	s.AddTool(mcp.NewTool("chat_regenerate",
		mcp.WithDescription("Resubmit the most recent user message and return the new reply"),
	), t.Regenerate)

	s.AddTool(mcp.NewTool("chat_history",
		mcp.WithDescription("Return the live conversation as JSON"),
	), t.History)

	s.AddTool(mcp.NewTool("chat_rate",
		mcp.WithDescription("Rate an assistant turn"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based turn index")),
		mcp.WithString("rating", mcp.Required(), mcp.Enum("up", "down"), mcp.Description("Rating to set")),
	), t.Rate)

	s.AddTool(mcp.NewTool("chat_edit",
		mcp.WithDescription("Remove a user turn and everything after it, returning its text for editing"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based index of a user turn")),
	), t.Edit)

	s.AddTool(mcp.NewTool("chat_save",
		mcp.WithDescription("Save the live conversation as a named session"),
		mcp.WithString("name", mcp.Description("Session name; defaults to a timestamp")),
	), t.Save)

	s.AddTool(mcp.NewTool("chat_load",
		mcp.WithDescription("Replace the live conversation with a saved session"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based saved session index")),
	), t.Load)

	s.AddTool(mcp.NewTool("chat_list_saved",
		mcp.WithDescription("List saved sessions"),
	), t.ListSaved)

	s.AddTool(mcp.NewTool("chat_new",
		mcp.WithDescription("Start a new, empty conversation"),
	), t.New)

	s.AddTool(mcp.NewTool("chat_share",
		mcp.WithDescription("Render the live conversation for sharing"),
		mcp.WithString("format", mcp.Enum(session.FormatText, session.FormatJSON, session.FormatYAML), mcp.Description("Output format")),
	), t.Share)
}

// Send handles chat_send.
func (t *Tools) Send(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reply, err := t.ctrl.Submit(ctx, text)
	if err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// Regenerate handles chat_regenerate.
func (t *Tools) Regenerate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reply, err := t.ctrl.Regenerate(ctx)
	if err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// History handles chat_history.
func (t *Tools) History(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.ctrl.Share(session.FormatJSON)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}

// Rate handles chat_rate.
func (t *Tools) Rate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("rating")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rating, err := history.ParseRating(raw)
	if err != nil {
		return t.errorResult(err), nil
	}
	if err := t.ctrl.Rate(ctx, i, rating); err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("turn %d rated %s", i, rating)), nil
}

// Edit handles chat_edit.
func (t *Tools) Edit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := t.ctrl.EditUserTurn(ctx, i)
	if err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(content), nil
}

// Save handles chat_save.
func (t *Tools) Save(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ss, err := t.ctrl.Save(ctx, req.GetString("name", ""))
	if err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved %q (%d turns)", ss.Name, len(ss.Turns))), nil
}

// Load handles chat_load.
func (t *Tools) Load(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	turns, err := t.ctrl.Load(ctx, i)
	if err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded %d turns", len(turns))), nil
}

// ListSaved handles chat_list_saved.
func (t *Tools) ListSaved(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	saved := t.ctrl.SavedSessions()
	if len(saved) == 0 {
		return mcp.NewToolResultText("no saved chats"), nil
	}
	lines := make([]string, len(saved))
	for i, ss := range saved {
		lines[i] = fmt.Sprintf("%d: %s (%d turns)", i, ss.Name, len(ss.Turns))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

// New handles chat_new.
func (t *Tools) New(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ctrl.NewChat(ctx); err != nil {
		return t.errorResult(err), nil
	}
	return mcp.NewToolResultText("started a new chat"), nil
}

// Share handles chat_share.
func (t *Tools) Share(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.ctrl.Share(req.GetString("format", session.FormatText))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

// errorResult reports err to the client as a tool error so the model can see
// the user-facing message and react to it.
func (t *Tools) errorResult(err error) *mcp.CallToolResult {
	msg, _ := json.Marshal(map[string]string{
		"error":   err.Error(),
		"message": t.ctrl.DisplayMessage(err),
	})
	return mcp.NewToolResultError(string(msg))
}
