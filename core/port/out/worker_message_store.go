package out

import (
	"context"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// DefaultPageSize is the number of items fetched per store round trip.
const DefaultPageSize = 100

// MessageStore is the structured half of the planner: a per-user,
// reverse-chronological message collection.
type MessageStore interface {
	// QueryByPredicate scans the user's partition newest first and returns at
	// most maxItems messages matching predicate. A nil predicate matches all.
	QueryByPredicate(ctx context.Context, userKey string, predicate domain.Predicate, maxItems int) ([]*domain.Message, error)

	// GetByID returns nil, nil when the message does not exist.
	GetByID(ctx context.Context, userKey, id string) (*domain.Message, error)
}

// AccountRepository resolves the user keys linked to a login.
type AccountRepository interface {
	// ListAccounts returns the accounts linked to ownerKey. A non-empty
	// providers list keeps only accounts on those inbox providers.
	ListAccounts(ctx context.Context, ownerKey string, providers []string) ([]*domain.Account, error)
}
