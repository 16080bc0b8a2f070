// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/paging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// Message Store (PostgreSQL)
// =============================================================================

// MessageAdapter implements out.MessageStore on a PostgreSQL table
// partitioned by user_key and read newest first.
//
//	CREATE TABLE messages (
//	    user_key   TEXT NOT NULL,
//	    message_id TEXT NOT NULL,
//	    provider   TEXT NOT NULL,
//	    sender     TEXT NOT NULL,
//	    recipients TEXT[] NOT NULL DEFAULT '{}',
//	    subject    TEXT NOT NULL DEFAULT '',
//	    body       TEXT NOT NULL DEFAULT '',
//	    created_at BIGINT NOT NULL,
//	    PRIMARY KEY (user_key, message_id)
//	);
//	CREATE INDEX idx_messages_user_created ON messages (user_key, created_at DESC, message_id DESC);
type MessageAdapter struct {
	db       *pgxpool.Pool
	pageSize int
}

var _ out.MessageStore = (*MessageAdapter)(nil)

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(db *pgxpool.Pool) *MessageAdapter {
	return &MessageAdapter{db: db, pageSize: out.DefaultPageSize}
}

const messageSelectColumns = `message_id, user_key, provider, sender, recipients, subject, body, created_at`

// messageColumns maps predicate fields to table columns.
var messageColumns = map[domain.Field]string{
	domain.FieldID:         "message_id",
	domain.FieldProvider:   "provider",
	domain.FieldSender:     "sender",
	domain.FieldRecipients: "recipients",
	domain.FieldCreatedAt:  "created_at",
}

// QueryByPredicate pages through the user's messages until maxItems match.
func (a *MessageAdapter) QueryByPredicate(ctx context.Context, userKey string, predicate domain.Predicate, maxItems int) ([]*domain.Message, error) {
	where, args, err := compilePredicate(predicate, []any{userKey})
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, token string, limit int) (paging.Page[*domain.Message], error) {
		cursor, err := paging.DecodeCursor(token)
		if err != nil {
			return paging.Page[*domain.Message]{}, err
		}
		query, pageArgs := pageQuery(where, args, cursor, limit)

		rows, err := a.db.Query(ctx, query, pageArgs...)
		if err != nil {
			return paging.Page[*domain.Message]{}, fmt.Errorf("query messages: %w", err)
		}
		items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.Message])
		if err != nil {
			return paging.Page[*domain.Message]{}, fmt.Errorf("scan messages: %w", err)
		}
		return paging.Page[*domain.Message]{Items: items, Next: paging.NextCursor(items, limit, messageCursor)}, nil
	}

	return paging.Collect(ctx, fetch, a.pageSize, maxItems)
}

// GetByID gets a single message from the user's partition.
func (a *MessageAdapter) GetByID(ctx context.Context, userKey, id string) (*domain.Message, error) {
	query := `SELECT ` + messageSelectColumns + ` FROM messages WHERE user_key = $1 AND message_id = $2`

	rows, err := a.db.Query(ctx, query, userKey, id)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[domain.Message])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

func messageCursor(m *domain.Message) paging.Cursor {
	return paging.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// pageQuery builds one keyset page. $1 is always the user key.
func pageQuery(where string, args []any, cursor *paging.Cursor, limit int) (string, []any) {
	pageArgs := append([]any(nil), args...)
	conditions := []string{"user_key = $1"}
	if where != "" {
		conditions = append(conditions, where)
	}
	if cursor != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, message_id) < ($%d, $%d)", len(pageArgs)+1, len(pageArgs)+2))
		pageArgs = append(pageArgs, cursor.CreatedAt, cursor.ID)
	}
	pageArgs = append(pageArgs, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, message_id DESC
		LIMIT $%d`,
		messageSelectColumns, strings.Join(conditions, " AND "), len(pageArgs))
	return query, pageArgs
}

// compilePredicate renders p as a parameterised SQL condition, appending its
// values to args. A nil predicate renders as "".
func compilePredicate(p domain.Predicate, args []any) (string, []any, error) {
	if p == nil {
		return "", args, nil
	}

	switch p := p.(type) {
	case domain.And:
		return compileChildren(p.Children, " AND ", args)
	case domain.Or:
		return compileChildren(p.Children, " OR ", args)
	case domain.Eq:
		col, err := messageColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, p.Value)
		if p.Field.IsMultiValued() {
			return fmt.Sprintf("$%d = ANY(%s)", len(args), col), args, nil
		}
		return fmt.Sprintf("%s = $%d", col, len(args)), args, nil
	case domain.In:
		col, err := messageColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, p.Values)
		if p.Field.IsMultiValued() {
			return fmt.Sprintf("%s && $%d", col, len(args)), args, nil
		}
		return fmt.Sprintf("%s = ANY($%d)", col, len(args)), args, nil
	case domain.Range:
		col, err := messageColumn(p.Field)
		if err != nil {
			return "", nil, err
		}
		var parts []string
		if p.Gte != nil {
			args = append(args, *p.Gte)
			parts = append(parts, fmt.Sprintf("%s >= $%d", col, len(args)))
		}
		if p.Lte != nil {
			args = append(args, *p.Lte)
			parts = append(parts, fmt.Sprintf("%s <= $%d", col, len(args)))
		}
		if len(parts) == 0 {
			return "TRUE", args, nil
		}
		return strings.Join(parts, " AND "), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func compileChildren(children []domain.Predicate, sep string, args []any) (string, []any, error) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		var (
			part string
			err  error
		)
		part, args, err = compilePredicate(c, args)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func messageColumn(f domain.Field) (string, error) {
	col, ok := messageColumns[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return col, nil
}
