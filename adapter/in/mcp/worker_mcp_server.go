// Package mcp exposes the query planner as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"os"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/port/in"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ToolSearchMessages = "search_messages"
	ToolListMessages   = "list_messages"
	ToolGetMessage     = "get_message"
)

const serverName = "ig-gmail-mcp"

// Options scopes the tools to one mailbox.
type Options struct {
	UserKey  string
	Location *time.Location
	Version  string
}

// NewServer registers the planner tools on a fresh MCP server.
func NewServer(service in.SearchService, opts Options) *server.MCPServer {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	h := newHandlers(service, opts)
	s.AddTool(searchMessagesTool(), h.searchMessages)
	s.AddTool(listMessagesTool(), h.listMessages)
	s.AddTool(getMessageTool(), h.getMessage)
	return s
}

// Serve blocks until stdin is closed or ctx is cancelled.
func Serve(ctx context.Context, service in.SearchService, opts Options) error {
	stdio := server.NewStdioServer(NewServer(service, opts))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func withDate(name, desc string) mcp.ToolOption {
	return mcp.WithString(name, mcp.Description(desc+" (YYYY-MM-DD)"))
}

func searchMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMessages,
		mcp.WithDescription("Answer a natural-language question about the mailbox. Date questions such as 'emails from last week' scan by date, everything else is a semantic search."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text question, e.g. 'what did Jane say about the contract last week?'"),
		),
		mcp.WithArray("inboxes",
			mcp.Description("Provider tags to restrict to; ALL means every inbox"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("recipients",
			mcp.Description("Only messages sent to one of these addresses"),
			mcp.WithStringItems(),
		),
		mcp.WithString("from_email", mcp.Description("Only messages from this sender")),
		withDate("start_date", "Window start"),
		mcp.WithString("start_time", mcp.Description("Window start time, HH:MM (default 00:00)")),
		withDate("end_date", "Window end"),
		mcp.WithString("end_time", mcp.Description("Window end time, HH:MM (default 23:59)")),
		mcp.WithBoolean("all_accounts", mcp.Description("Also search every linked account")),
	)
}

func listMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolListMessages,
		mcp.WithDescription("List messages from a set of senders inside an optional date window, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithArray("senders",
			mcp.Description("Sender addresses; empty lists every sender"),
			mcp.WithStringItems(),
		),
		withDate("from_date", "Only messages on or after this day"),
		withDate("to_date", "Only messages on or before this day"),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 50)")),
	)
}

func getMessageTool() mcp.Tool {
	return mcp.NewTool(ToolGetMessage,
		mcp.WithDescription("Get one message by its provider message ID."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id", mcp.Required(), mcp.Description("Message ID")),
	)
}
