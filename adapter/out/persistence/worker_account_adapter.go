package persistence

import (
	"context"
	"fmt"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Linked Accounts (PostgreSQL)
// =============================================================================

// AccountAdapter implements out.AccountRepository.
//
//	CREATE TABLE linked_accounts (
//	    owner_key  TEXT NOT NULL,
//	    user_key   TEXT NOT NULL,
//	    email      TEXT NOT NULL,
//	    provider   TEXT NOT NULL DEFAULT 'GMAIL',
//	    is_primary BOOLEAN NOT NULL DEFAULT FALSE,
//	    PRIMARY KEY (owner_key, user_key)
//	);
type AccountAdapter struct {
	db *sqlx.DB
}

var _ out.AccountRepository = (*AccountAdapter)(nil)

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(db *sqlx.DB) *AccountAdapter {
	return &AccountAdapter{db: db}
}

const listAccountsQuery = `
	SELECT user_key, email, provider, is_primary
	FROM linked_accounts
	WHERE owner_key = $1 AND user_key <> $1
	  AND (COALESCE(cardinality($2::text[]), 0) = 0 OR provider = ANY($2::text[]))
	ORDER BY is_primary DESC, email ASC`

// ListAccounts returns the accounts linked to ownerKey, primary first.
// The owner's own partition is not included.
func (a *AccountAdapter) ListAccounts(ctx context.Context, ownerKey string, providers []string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	if err := a.db.SelectContext(ctx, &accounts, listAccountsQuery, listAccountsArgs(ownerKey, providers)...); err != nil {
		return nil, fmt.Errorf("list linked accounts: %w", err)
	}
	return accounts, nil
}

func listAccountsArgs(ownerKey string, providers []string) []any {
	if providers == nil {
		providers = []string{}
	}
	return []any{ownerKey, pq.Array(providers)}
}
