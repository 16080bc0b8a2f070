package http

import (
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/in"
	"github.com/InboxGenie/IG-Gmail-MCP/infra/middleware"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/response"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// SearchHandler exposes the query planner over HTTP.
type SearchHandler struct {
	service in.SearchService
}

func NewSearchHandler(service in.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Register(router fiber.Router) {
	router.Post("/query", h.Query)
	router.Get("/messages", h.ListMessages)
	router.Get("/messages/:id", h.GetMessage)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query       string           `json:"query"`
	Filter      *domain.UIFilter `json:"filter,omitempty"`
	AllAccounts bool             `json:"all_accounts,omitempty"`
}

// QueryResponse is returned for a single-account query.
type QueryResponse struct {
	Strategy   domain.StrategyKind    `json:"strategy"`
	Reasoning  domain.ReasoningFilter `json:"reasoning"`
	Candidates int                    `json:"candidates"`
	Messages   []*domain.Message      `json:"messages"`
}

// MultiAccountResponse is returned when all_accounts is set.
type MultiAccountResponse struct {
	Reasoning domain.ReasoningFilter `json:"reasoning"`
	Messages  []*domain.Message      `json:"messages"`
	Accounts  []AccountSummary       `json:"accounts"`
	Failures  []AccountFailure       `json:"failures,omitempty"`
}

type AccountSummary struct {
	UserKey    string              `json:"user_key"`
	Strategy   domain.StrategyKind `json:"strategy"`
	Candidates int                 `json:"candidates"`
	Returned   int                 `json:"returned"`
}

type AccountFailure struct {
	UserKey string `json:"user_key"`
	Error   string `json:"error"`
}

// Query answers a natural-language question.
// POST /api/v1/query
func (h *SearchHandler) Query(c *fiber.Ctx) error {
	userKey, err := requireUserKey(c)
	if err != nil {
		return err
	}

	var req QueryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return apperr.MissingField("query")
	}

	ctx := c.UserContext()
	if req.AllAccounts {
		res, err := h.service.QueryLinkedAccounts(ctx, userKey, req.Query, req.Filter)
		if err != nil {
			return err
		}
		return response.OKWithMeta(c, toMultiAccountResponse(res), &response.Meta{Count: len(res.Messages)})
	}

	res, err := h.service.Query(ctx, userKey, req.Query, req.Filter)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, QueryResponse{
		Strategy:   res.Strategy,
		Reasoning:  res.Reasoning,
		Candidates: res.Candidates,
		Messages:   nonNil(res.Messages),
	}, &response.Meta{Count: len(res.Messages)})
}

// ListMessages lists messages by sender inside an optional window.
// GET /api/v1/messages?sender=a&sender=b&from=<unix>&to=<unix>&limit=
func (h *SearchHandler) ListMessages(c *fiber.Ctx) error {
	userKey, err := requireUserKey(c)
	if err != nil {
		return err
	}

	from, err := queryUnix(c, "from")
	if err != nil {
		return err
	}
	to, err := queryUnix(c, "to")
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return apperr.InvalidInput("limit", "must not be negative")
	}

	req := &in.ListMessagesRequest{
		UserKey:  userKey,
		Senders:  queryValues(c, "sender"),
		From:     from,
		To:       to,
		MaxItems: limit,
	}
	messages, err := h.service.ListMessages(c.UserContext(), req)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, nonNil(messages), &response.Meta{
		Count:     len(messages),
		Limit:     req.MaxItems,
		Truncated: req.MaxItems > 0 && len(messages) >= req.MaxItems,
	})
}

// GetMessage returns one message.
// GET /api/v1/messages/:id
func (h *SearchHandler) GetMessage(c *fiber.Ctx) error {
	userKey, err := requireUserKey(c)
	if err != nil {
		return err
	}
	m, err := h.service.GetMessage(c.UserContext(), userKey, c.Params("id"))
	if err != nil {
		return err
	}
	return response.OK(c, m)
}

func toMultiAccountResponse(res *domain.MultiAccountResult) MultiAccountResponse {
	out := MultiAccountResponse{
		Reasoning: res.Reasoning,
		Messages:  nonNil(res.Messages),
		Accounts:  make([]AccountSummary, 0, len(res.Accounts)),
	}
	for _, a := range res.Accounts {
		out.Accounts = append(out.Accounts, AccountSummary{
			UserKey:    a.UserKey,
			Strategy:   a.Strategy,
			Candidates: a.Candidates,
			Returned:   len(a.Messages),
		})
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, AccountFailure{UserKey: f.UserKey, Error: f.Message})
	}
	return out
}

func requireUserKey(c *fiber.Ctx) (string, error) {
	key := middleware.GetUserKey(c)
	if key == "" {
		return "", apperr.ErrUnauthorized
	}
	return key, nil
}
