package search

import (
	"context"
	"fmt"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/metrics"
)

const (
	backendStore  = "message_store"
	backendVector = "vector_index"
)

// SearchExecutor runs a Strategy against the store and the vector index.
type SearchExecutor struct {
	store     out.MessageStore
	index     out.VectorIndex
	namespace string
	merger    *ResultMerger
	latency   metrics.StageRecorder
}

// NewSearchExecutor creates a new search executor. latency may be nil.
func NewSearchExecutor(store out.MessageStore, index out.VectorIndex, namespace string, latency metrics.StageRecorder) *SearchExecutor {
	if latency == nil {
		latency = (*metrics.LatencyRegistry)(nil)
	}
	return &SearchExecutor{
		store:     store,
		index:     index,
		namespace: namespace,
		merger:    NewResultMerger(),
		latency:   latency,
	}
}

// executionResult is what one strategy produced for one account.
type executionResult struct {
	Messages   []*domain.Message
	Candidates int
}

// Execute dispatches on the strategy type.
func (e *SearchExecutor) Execute(ctx context.Context, userKey, queryText string, strategy Strategy) (*executionResult, error) {
	switch s := strategy.(type) {
	case DateFilterStrategy:
		return e.executeDateFilter(ctx, userKey, queryText, s)
	case SemanticStrategy:
		return e.executeSemantic(ctx, userKey, queryText, s)
	default:
		return nil, fmt.Errorf("unknown strategy %T", strategy)
	}
}

func (e *SearchExecutor) executeDateFilter(ctx context.Context, userKey, queryText string, s DateFilterStrategy) (*executionResult, error) {
	start := time.Now()
	candidates, err := e.store.QueryByPredicate(ctx, userKey, s.Predicate, s.MaxCandidates)
	e.latency.Record(metrics.StageStore, time.Since(start))
	if err != nil {
		return nil, apperr.RetrievalFailed(backendStore, err)
	}

	res := &executionResult{Messages: candidates, Candidates: len(candidates)}
	if !s.Narrow || len(candidates) == 0 {
		return res, nil
	}

	ids := make([]string, len(candidates))
	for i, m := range candidates {
		ids[i] = m.ID
	}
	filter := domain.NewVectorPredicate(userKey).In(string(domain.FieldID), ids)

	start = time.Now()
	hits, err := e.index.Search(ctx, e.namespace, queryText, filter, len(ids))
	e.latency.Record(metrics.StageVector, time.Since(start))
	if err != nil {
		return nil, apperr.RetrievalFailed(backendVector, err)
	}

	res.Messages = e.merger.Intersect(candidates, hits)
	logger.WithContext(ctx).WithFields(map[string]any{
		"candidates": len(candidates),
		"hits":       len(hits),
		"kept":       len(res.Messages),
	}).Debug("[SearchExecutor] narrowed date candidates")
	return res, nil
}

func (e *SearchExecutor) executeSemantic(ctx context.Context, userKey, queryText string, s SemanticStrategy) (*executionResult, error) {
	start := time.Now()
	hits, err := e.index.Search(ctx, e.namespace, queryText, s.Filter, s.TopK)
	e.latency.Record(metrics.StageVector, time.Since(start))
	if err != nil {
		return nil, apperr.RetrievalFailed(backendVector, err)
	}

	start = time.Now()
	defer func() { e.latency.Record(metrics.StageHydrate, time.Since(start)) }()

	messages := make([]*domain.Message, 0, len(hits))
	for _, h := range e.merger.DedupeHits(hits) {
		m, err := e.store.GetByID(ctx, userKey, h.ID)
		if err != nil {
			return nil, apperr.RetrievalFailed(backendStore, err)
		}
		if m == nil {
			logger.WithContext(ctx).WithField("message_id", h.ID).Debug("[SearchExecutor] vector hit missing from store")
			continue
		}
		messages = append(messages, m)
	}
	return &executionResult{Messages: messages, Candidates: len(hits)}, nil
}
