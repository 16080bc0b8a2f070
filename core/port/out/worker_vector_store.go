// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"errors"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// ErrUnscopedPredicate is returned when a vector query is not scoped to a user key.
// Reaching it is a programming error: every caller builds predicates from a user key.
var ErrUnscopedPredicate = errors.New("vector predicate is not scoped to a user key")

// =============================================================================
// VectorIndex (semantic search)
// =============================================================================

// VectorIndex is the semantic half of the planner: text in, ranked ids out.
type VectorIndex interface {
	// Search embeds queryText and returns at most topK hits ordered by score desc.
	Search(ctx context.Context, namespace, queryText string, filter domain.VectorPredicate, topK int) ([]VectorHit, error)
}

// VectorHit is a single semantic match.
type VectorHit struct {
	ID      string  `json:"id"`
	UserKey string  `json:"user_key"`
	Score   float64 `json:"score"`
}

// =============================================================================
// VectorStore (pgvector)
// =============================================================================

// VectorStore searches precomputed embeddings.
type VectorStore interface {
	SearchVector(ctx context.Context, namespace string, embedding []float32, filter domain.VectorPredicate, topK int) ([]VectorHit, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
