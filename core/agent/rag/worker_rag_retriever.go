package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
)

// Retriever implements out.VectorIndex: embed the query, then search the store.
type Retriever struct {
	embedder out.Embedder
	store    out.VectorStore
}

func NewRetriever(embedder out.Embedder, store out.VectorStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
	}
}

// Search returns up to topK hits ordered by score desc.
func (r *Retriever) Search(ctx context.Context, namespace, queryText string, filter domain.VectorPredicate, topK int) ([]out.VectorHit, error) {
	if !filter.IsScoped() {
		return nil, out.ErrUnscopedPredicate
	}
	if topK <= 0 {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.SearchVector(ctx, namespace, embedding, filter, topK)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
