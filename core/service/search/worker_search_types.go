package search

import (
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// Strategy is the retrieval plan for one query. Exactly one of
// DateFilterStrategy or SemanticStrategy.
type Strategy interface {
	Kind() domain.StrategyKind
	strategy()
}

// DateFilterStrategy scans the store with Predicate and, when Narrow is set,
// keeps only candidates the vector index also considers relevant.
type DateFilterStrategy struct {
	Predicate     domain.Predicate
	Narrow        bool
	MaxCandidates int
}

// SemanticStrategy ranks messages by similarity and hydrates them from the store.
type SemanticStrategy struct {
	Filter domain.VectorPredicate
	TopK   int
}

func (DateFilterStrategy) Kind() domain.StrategyKind { return domain.StrategyDateFilter }
func (SemanticStrategy) Kind() domain.StrategyKind   { return domain.StrategySemantic }

func (DateFilterStrategy) strategy() {}
func (SemanticStrategy) strategy()   {}

// Config tunes the planner.
type Config struct {
	Namespace         string
	SemanticTopK      int
	MaxCandidates     int
	FanOutConcurrency int
	Location          *time.Location
	Now               func() time.Time
}

const (
	DefaultNamespace         = "messages"
	DefaultSemanticTopK      = 10
	DefaultMaxCandidates     = 1000
	DefaultFanOutConcurrency = 4
)

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.SemanticTopK <= 0 {
		c.SemanticTopK = DefaultSemanticTopK
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.FanOutConcurrency <= 0 {
		c.FanOutConcurrency = DefaultFanOutConcurrency
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
