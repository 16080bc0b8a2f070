package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VectorStore searches message embeddings stored with pgvector.
//
//	CREATE TABLE message_embeddings (
//	    namespace  TEXT NOT NULL,
//	    message_id TEXT NOT NULL,
//	    user_key   TEXT NOT NULL,
//	    provider   TEXT NOT NULL,
//	    sender     TEXT NOT NULL,
//	    recipients TEXT[] NOT NULL DEFAULT '{}',
//	    created_at BIGINT NOT NULL,
//	    embedding  vector(1536) NOT NULL,
//	    PRIMARY KEY (namespace, user_key, message_id)
//	);
type VectorStore struct {
	db *pgxpool.Pool
}

func NewVectorStore(db *pgxpool.Pool) *VectorStore {
	return &VectorStore{db: db}
}

// vectorColumns maps metadata filter fields to table columns.
var vectorColumns = map[string]string{
	domain.VectorUserKeyField:      "user_key",
	string(domain.FieldID):         "message_id",
	string(domain.FieldProvider):   "provider",
	string(domain.FieldSender):     "sender",
	string(domain.FieldRecipients): "recipients",
	string(domain.FieldCreatedAt):  "created_at",
}

// SearchVector returns the topK nearest messages by cosine distance that satisfy filter.
func (s *VectorStore) SearchVector(ctx context.Context, namespace string, embedding []float32, filter domain.VectorPredicate, topK int) ([]out.VectorHit, error) {
	if !filter.IsScoped() {
		return nil, out.ErrUnscopedPredicate
	}
	if topK <= 0 {
		return nil, nil
	}

	args := []any{pgVector(embedding), namespace}
	where, args, err := compileVectorFilter(filter, args)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT message_id, user_key, 1 - (embedding <=> $1) AS score
		FROM message_embeddings
		WHERE namespace = $2 AND ` + where + `
		ORDER BY embedding <=> $1
		LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	hits := make([]out.VectorHit, 0, topK)
	for rows.Next() {
		var h out.VectorHit
		if err := rows.Scan(&h.ID, &h.UserKey, &h.Score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// compileVectorFilter renders filter as SQL conditions, appending bind values to args.
// Fields are visited in sorted order so the same filter always yields the same SQL.
func compileVectorFilter(filter domain.VectorPredicate, args []any) (string, []any, error) {
	var conditions []string
	for _, field := range filter.Fields() {
		column, ok := vectorColumns[field]
		if !ok {
			return "", nil, fmt.Errorf("vector filter: unknown field %q", field)
		}
		cond := filter[field]

		if v, ok := cond[domain.VecIn]; ok {
			values, ok := v.([]string)
			if !ok {
				return "", nil, fmt.Errorf("vector filter: %s $in expects []string, got %T", field, v)
			}
			args = append(args, values)
			if domain.Field(field).IsMultiValued() {
				conditions = append(conditions, fmt.Sprintf("%s && $%d", column, len(args)))
			} else {
				conditions = append(conditions, fmt.Sprintf("%s = ANY($%d)", column, len(args)))
			}
		}
		for _, op := range []domain.VectorOperator{domain.VecGte, domain.VecLte} {
			v, ok := cond[op]
			if !ok {
				continue
			}
			n, err := toInt64(v)
			if err != nil {
				return "", nil, fmt.Errorf("vector filter: %s %s: %w", field, op, err)
			}
			args = append(args, n)
			sqlOp := ">="
			if op == domain.VecLte {
				sqlOp = "<="
			}
			conditions = append(conditions, fmt.Sprintf("%s %s $%d", column, sqlOp, len(args)))
		}
	}
	if len(conditions) == 0 {
		return "TRUE", args, nil
	}
	return strings.Join(conditions, " AND "), args, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

// pgVector converts a float32 slice to the pgvector text format.
func pgVector(v []float32) string {
	if len(v) == 0 {
		return "[0]"
	}

	buf := make([]byte, 0, len(v)*13+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', 6, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}
