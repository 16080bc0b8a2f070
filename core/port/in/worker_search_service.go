package in

import (
	"context"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// SearchService answers natural-language questions over archived messages.
type SearchService interface {
	Query(ctx context.Context, userKey, queryText string, ui *domain.UIFilter) (*domain.QueryResult, error)
	QueryAccounts(ctx context.Context, userKeys []string, queryText string, ui *domain.UIFilter) (*domain.MultiAccountResult, error)
	QueryLinkedAccounts(ctx context.Context, ownerKey, queryText string, ui *domain.UIFilter) (*domain.MultiAccountResult, error)
	ListMessages(ctx context.Context, req *ListMessagesRequest) ([]*domain.Message, error)
	GetMessage(ctx context.Context, userKey, id string) (*domain.Message, error)
}

// ListMessagesRequest selects messages from a set of senders inside a window.
// ListMessages rewrites MaxItems to the cap it actually applied.
type ListMessagesRequest struct {
	UserKey  string   `json:"-"`
	Senders  []string `json:"senders"`
	From     *int64   `json:"from,omitempty"`
	To       *int64   `json:"to,omitempty"`
	MaxItems int      `json:"limit,omitempty"`
}
