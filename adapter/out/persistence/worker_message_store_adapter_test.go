package persistence

import (
	"strings"
	"testing"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/paging"

	"github.com/google/go-cmp/cmp"
)

func TestCompilePredicate(t *testing.T) {
	tests := []struct {
		name     string
		p        domain.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "nil",
			p:        nil,
			wantSQL:  "",
			wantArgs: []any{"uk"},
		},
		{
			name:     "sender eq",
			p:        domain.Eq{Field: domain.FieldSender, Value: "jane@x.com"},
			wantSQL:  "sender = $2",
			wantArgs: []any{"uk", "jane@x.com"},
		},
		{
			name:     "recipient eq is array membership",
			p:        domain.Eq{Field: domain.FieldRecipients, Value: "bob@x.com"},
			wantSQL:  "$2 = ANY(recipients)",
			wantArgs: []any{"uk", "bob@x.com"},
		},
		{
			name:     "provider in",
			p:        domain.In{Field: domain.FieldProvider, Values: []string{"GMAIL"}},
			wantSQL:  "provider = ANY($2)",
			wantArgs: []any{"uk", []string{"GMAIL"}},
		},
		{
			name:     "recipients in is overlap",
			p:        domain.In{Field: domain.FieldRecipients, Values: []string{"a", "b"}},
			wantSQL:  "recipients && $2",
			wantArgs: []any{"uk", []string{"a", "b"}},
		},
		{
			name:     "open range",
			p:        domain.Range{Field: domain.FieldCreatedAt, Lte: domain.Int64(9)},
			wantSQL:  "created_at <= $2",
			wantArgs: []any{"uk", int64(9)},
		},
		{
			name:     "empty range",
			p:        domain.Range{Field: domain.FieldCreatedAt},
			wantSQL:  "TRUE",
			wantArgs: []any{"uk"},
		},
		{
			name: "nested",
			p: domain.AllOf(
				domain.AnyOf(
					domain.Eq{Field: domain.FieldSender, Value: "a"},
					domain.Eq{Field: domain.FieldSender, Value: "b"},
				),
				domain.Range{Field: domain.FieldCreatedAt, Gte: domain.Int64(1), Lte: domain.Int64(2)},
			),
			wantSQL:  "((sender = $2 OR sender = $3) AND created_at >= $4 AND created_at <= $5)",
			wantArgs: []any{"uk", "a", "b", int64(1), int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := compilePredicate(tt.p, []any{"uk"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("expected %q, got %q", tt.wantSQL, sql)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompilePredicate_UnknownField(t *testing.T) {
	_, _, err := compilePredicate(domain.Eq{Field: "subject", Value: "x"}, nil)
	if err == nil {
		t.Error("expected error for a field without a column")
	}
}

func TestPageQuery(t *testing.T) {
	args := []any{"uk", "jane@x.com"}

	t.Run("first page", func(t *testing.T) {
		query, pageArgs := pageQuery("sender = $2", args, nil, 100)
		if !strings.Contains(query, "WHERE user_key = $1 AND sender = $2") {
			t.Errorf("missing partition condition:\n%s", query)
		}
		if !strings.Contains(query, "ORDER BY created_at DESC, message_id DESC") {
			t.Errorf("missing keyset ordering:\n%s", query)
		}
		if !strings.Contains(query, "LIMIT $3") {
			t.Errorf("expected limit placeholder $3:\n%s", query)
		}
		if diff := cmp.Diff([]any{"uk", "jane@x.com", 100}, pageArgs); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("after cursor", func(t *testing.T) {
		query, pageArgs := pageQuery("", []any{"uk"}, &paging.Cursor{CreatedAt: 50, ID: "m9"}, 10)
		if !strings.Contains(query, "(created_at, message_id) < ($2, $3)") {
			t.Errorf("missing keyset condition:\n%s", query)
		}
		if diff := cmp.Diff([]any{"uk", int64(50), "m9", 10}, pageArgs); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("does not mutate shared args", func(t *testing.T) {
		shared := make([]any, 1, 8)
		shared[0] = "uk"
		pageQuery("", shared, nil, 10)
		pageQuery("", shared, nil, 20)
		if len(shared) != 1 {
			t.Errorf("shared args grew to %d", len(shared))
		}
	})
}
