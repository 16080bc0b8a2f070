package search

import (
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// StrategyPlanner picks the retrieval path for a classified query.
type StrategyPlanner struct {
	transformer   *QueryTransformer
	semanticTopK  int
	maxCandidates int
}

// NewStrategyPlanner creates a new strategy planner.
func NewStrategyPlanner(transformer *QueryTransformer, semanticTopK, maxCandidates int) *StrategyPlanner {
	return &StrategyPlanner{
		transformer:   transformer,
		semanticTopK:  semanticTopK,
		maxCandidates: maxCandidates,
	}
}

// Plan chooses the date path when the reasoning step detected a time
// restriction and the semantic path otherwise. The choice is made once and
// the two paths never mix.
func (p *StrategyPlanner) Plan(userKey string, rf domain.ReasoningFilter, ui *domain.UIFilter, now time.Time) (Strategy, error) {
	if rf.FilteringByDate {
		pred, err := p.transformer.ToStorePredicate(rf, ui, now)
		if err != nil {
			return nil, err
		}
		return DateFilterStrategy{
			Predicate:     pred,
			Narrow:        rf.AskingAboutSpecificDetails,
			MaxCandidates: p.maxCandidates,
		}, nil
	}

	filter, err := p.transformer.ToVectorPredicate(userKey, nil, ui)
	if err != nil {
		return nil, err
	}
	return SemanticStrategy{Filter: filter, TopK: p.semanticTopK}, nil
}
