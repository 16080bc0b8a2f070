package mcp

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/in"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type handlers struct {
	service in.SearchService
	userKey string
	loc     *time.Location
}

func newHandlers(service in.SearchService, opts Options) *handlers {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &handlers{service: service, userKey: opts.UserKey, loc: loc}
}

func (h *handlers) searchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	queryText, _ := args["query"].(string)
	if strings.TrimSpace(queryText) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	ui, err := uiFilterArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = logger.ContextWithUserKey(ctx, h.userKey)
	if all, _ := args["all_accounts"].(bool); all {
		res, err := h.service.QueryLinkedAccounts(ctx, h.userKey, queryText, ui)
		if err != nil {
			return toolError("search", err), nil
		}
		return jsonResult(res)
	}

	res, err := h.service.Query(ctx, h.userKey, queryText, ui)
	if err != nil {
		return toolError("search", err), nil
	}
	return jsonResult(res)
}

func (h *handlers) listMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	window := &domain.UIFilter{}
	var err error
	if window.StartDate, err = dateArg(args, "from_date"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if window.EndDate, err = dateArg(args, "to_date"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	listReq := &in.ListMessagesRequest{
		UserKey:  h.userKey,
		Senders:  stringsArg(args, "senders"),
		MaxItems: limitArg(args, "limit", defaultListLimit),
	}
	if from, ok, _ := window.StartUnix(h.loc); ok {
		listReq.From = &from
	}
	if to, ok, _ := window.EndUnix(h.loc); ok {
		listReq.To = &to
	}

	messages, err := h.service.ListMessages(logger.ContextWithUserKey(ctx, h.userKey), listReq)
	if err != nil {
		return toolError("list", err), nil
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return jsonResult(messages)
}

func (h *handlers) getMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["id"].(string)
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	m, err := h.service.GetMessage(logger.ContextWithUserKey(ctx, h.userKey), h.userKey, id)
	if err != nil {
		return toolError("get message", err), nil
	}
	return jsonResult(m)
}

// uiFilterArg builds a UIFilter from the flat tool arguments. It returns nil
// when no filter field is set.
func uiFilterArg(args map[string]any) (*domain.UIFilter, error) {
	ui := &domain.UIFilter{
		Inboxes:    stringsArg(args, "inboxes"),
		Recipients: stringsArg(args, "recipients"),
	}
	ui.FromEmail, _ = args["from_email"].(string)
	ui.StartTime, _ = args["start_time"].(string)
	ui.EndTime, _ = args["end_time"].(string)

	var err error
	if ui.StartDate, err = dateArg(args, "start_date"); err != nil {
		return nil, err
	}
	if ui.EndDate, err = dateArg(args, "end_date"); err != nil {
		return nil, err
	}
	if err := ui.Validate(); err != nil {
		return nil, err
	}

	if len(ui.Inboxes) == 0 && len(ui.Recipients) == 0 && ui.FromEmail == "" &&
		ui.StartDate == nil && ui.EndDate == nil && ui.StartTime == "" && ui.EndTime == "" {
		return nil, nil
	}
	return ui, nil
}

func dateArg(args map[string]any, key string) (*domain.Date, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &d, nil
}

// stringsArg accepts either a JSON array of strings or a comma separated string.
func stringsArg(args map[string]any, key string) []string {
	var raw []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	}

	var values []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			values = append(values, s)
		}
	}
	return values
}

// limitArg reads a non-negative integer. JSON numbers arrive as float64.
func limitArg(args map[string]any, key string, def int) int {
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || v <= 0 {
		return def
	}
	if v > maxListLimit {
		return maxListLimit
	}
	return int(v)
}

func toolError(op string, err error) *mcp.CallToolResult {
	appErr := apperr.AsAppError(err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s (%s)", op, appErr.Message, appErr.Code))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
