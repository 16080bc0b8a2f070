package search

import (
	"slices"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
)

// ResultMerger combines store and vector results.
type ResultMerger struct{}

// NewResultMerger creates a new result merger.
func NewResultMerger() *ResultMerger {
	return &ResultMerger{}
}

// Intersect keeps the candidates that also appear in hits, in candidate
// (chronological) order. Vector scores never reorder the date path.
func (m *ResultMerger) Intersect(candidates []*domain.Message, hits []out.VectorHit) []*domain.Message {
	relevant := make(map[string]bool, len(hits))
	for _, h := range hits {
		relevant[h.ID] = true
	}

	kept := make([]*domain.Message, 0, min(len(candidates), len(hits)))
	for _, c := range candidates {
		if relevant[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept
}

// DedupeHits drops repeated ids, keeping the first (highest ranked) occurrence.
func (m *ResultMerger) DedupeHits(hits []out.VectorHit) []out.VectorHit {
	seen := make(map[string]bool, len(hits))
	unique := make([]out.VectorHit, 0, len(hits))
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		unique = append(unique, h)
	}
	return unique
}

// MergeAccounts flattens per-account results into one list ordered by
// creation time, newest first. The order does not depend on which account
// finished first.
func (m *ResultMerger) MergeAccounts(results []*domain.QueryResult) []*domain.Message {
	type key struct{ userKey, id string }

	seen := make(map[key]bool)
	var merged []*domain.Message
	for _, r := range results {
		for _, msg := range r.Messages {
			k := key{r.UserKey, msg.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, msg)
		}
	}
	slices.SortStableFunc(merged, domain.SortByCreatedDesc)
	return merged
}
