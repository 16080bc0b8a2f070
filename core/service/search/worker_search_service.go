package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/in"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// Classifier interprets free text. Satisfied by llm.ReasoningClassifier.
type Classifier interface {
	Classify(ctx context.Context, queryText string, now time.Time) (domain.ReasoningFilter, error)
}

// Service answers natural-language queries over archived messages.
type Service struct {
	classifier  Classifier
	store       out.MessageStore
	accounts    out.AccountRepository
	transformer *QueryTransformer
	planner     *StrategyPlanner
	executor    *SearchExecutor
	merger      *ResultMerger
	cfg         Config
	latency     *metrics.LatencyRegistry
}

var _ in.SearchService = (*Service)(nil)

// NewService creates a new search service. accounts and latency may be nil.
func NewService(
	classifier Classifier,
	store out.MessageStore,
	index out.VectorIndex,
	accounts out.AccountRepository,
	cfg Config,
	latency *metrics.LatencyRegistry,
) *Service {
	cfg = cfg.withDefaults()
	transformer := NewQueryTransformer(cfg.Location)

	return &Service{
		classifier:  classifier,
		store:       store,
		accounts:    accounts,
		transformer: transformer,
		planner:     NewStrategyPlanner(transformer, cfg.SemanticTopK, cfg.MaxCandidates),
		executor:    NewSearchExecutor(store, index, cfg.Namespace, latency),
		merger:      NewResultMerger(),
		cfg:         cfg,
		latency:     latency,
	}
}

// Query answers queryText for a single account.
func (s *Service) Query(ctx context.Context, userKey, queryText string, ui *domain.UIFilter) (*domain.QueryResult, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, apperr.MissingField("user_key")
	}
	if err := validateQuery(queryText, ui); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.latency.Since(metrics.StageTotal, start)

	now := s.cfg.Now()
	rf, err := s.classify(ctx, queryText, now)
	if err != nil {
		return nil, err
	}
	result, err := s.queryAccount(ctx, userKey, queryText, ui, rf, now)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).WithDuration(time.Since(start)).WithFields(map[string]any{
		"strategy":   result.Strategy,
		"candidates": result.Candidates,
		"returned":   len(result.Messages),
	}).Info("[SearchService] query completed")
	return result, nil
}

// QueryAccounts answers queryText across several accounts at once. The
// question is classified once. A failing account is reported in Failures and
// never hides the others' results; only when every account fails is an error returned.
func (s *Service) QueryAccounts(ctx context.Context, userKeys []string, queryText string, ui *domain.UIFilter) (*domain.MultiAccountResult, error) {
	keys := uniqueKeys(userKeys)
	if len(keys) == 0 {
		return nil, apperr.MissingField("user_keys")
	}
	if err := validateQuery(queryText, ui); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.latency.Since(metrics.StageTotal, start)

	now := s.cfg.Now()
	rf, err := s.classify(ctx, queryText, now)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.QueryResult, len(keys))
	errs := make([]error, len(keys))

	// Plain Group: one account failing must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.cfg.FanOutConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			results[i], errs[i] = s.queryAccount(logger.ContextWithUserKey(ctx, key), key, queryText, ui, rf, now)
			return nil
		})
	}
	_ = g.Wait()

	res := &domain.MultiAccountResult{Reasoning: rf}
	for i, key := range keys {
		if errs[i] != nil {
			logger.WithContext(ctx).WithError(errs[i]).WithField("user_key", key).Warn("[SearchService] account query failed")
			res.Failures = append(res.Failures, domain.AccountFailure{UserKey: key, Err: errs[i], Message: errs[i].Error()})
			continue
		}
		res.Accounts = append(res.Accounts, results[i])
	}
	if len(res.Accounts) == 0 {
		return nil, errors.Join(errs...)
	}
	res.Messages = s.merger.MergeAccounts(res.Accounts)

	logger.WithContext(ctx).WithDuration(time.Since(start)).WithFields(map[string]any{
		"accounts": len(keys),
		"failed":   len(res.Failures),
		"returned": len(res.Messages),
	}).Info("[SearchService] multi-account query completed")
	return res, nil
}

// QueryLinkedAccounts resolves every account linked to ownerKey and fans out.
// Without an account repository only the owner is queried.
func (s *Service) QueryLinkedAccounts(ctx context.Context, ownerKey, queryText string, ui *domain.UIFilter) (*domain.MultiAccountResult, error) {
	keys := []string{ownerKey}
	if s.accounts != nil {
		accounts, err := s.accounts.ListAccounts(ctx, ownerKey, ui.ProviderTags())
		if err != nil {
			return nil, apperr.RetrievalFailed("account_repository", err)
		}
		for _, a := range accounts {
			keys = append(keys, a.UserKey)
		}
	}
	return s.QueryAccounts(ctx, keys, queryText, ui)
}

// ListMessages lists messages from the given senders inside an optional window,
// newest first. No senders means any sender.
func (s *Service) ListMessages(ctx context.Context, req *in.ListMessagesRequest) ([]*domain.Message, error) {
	if req == nil || strings.TrimSpace(req.UserKey) == "" {
		return nil, apperr.MissingField("user_key")
	}
	if req.From != nil && req.To != nil && *req.From > *req.To {
		return nil, apperr.InvalidInput("from", "must not be after to")
	}
	if req.MaxItems <= 0 || req.MaxItems > s.cfg.MaxCandidates {
		req.MaxItems = s.cfg.MaxCandidates
	}

	pred := s.transformer.SenderWindowPredicate(req.Senders, req.From, req.To)
	start := time.Now()
	messages, err := s.store.QueryByPredicate(ctx, req.UserKey, pred, req.MaxItems)
	s.latency.Record(metrics.StageStore, time.Since(start))
	if err != nil {
		return nil, apperr.RetrievalFailed(backendStore, err)
	}
	return messages, nil
}

// GetMessage returns a single message or a NOT_FOUND error.
func (s *Service) GetMessage(ctx context.Context, userKey, id string) (*domain.Message, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, apperr.MissingField("user_key")
	}
	if strings.TrimSpace(id) == "" {
		return nil, apperr.MissingField("id")
	}
	m, err := s.store.GetByID(ctx, userKey, id)
	if err != nil {
		return nil, apperr.RetrievalFailed(backendStore, err)
	}
	if m == nil {
		return nil, apperr.NotFound("message")
	}
	return m, nil
}

func (s *Service) classify(ctx context.Context, queryText string, now time.Time) (domain.ReasoningFilter, error) {
	start := time.Now()
	rf, err := s.classifier.Classify(ctx, queryText, now)
	s.latency.Record(metrics.StageReasoning, time.Since(start))
	if err != nil {
		return domain.ReasoningFilter{}, err
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"filtering_by_date": rf.FilteringByDate,
		"specific_details":  rf.AskingAboutSpecificDetails,
		"date":              rf.Date,
	}).Debug("[SearchService] query classified")
	return rf, nil
}

func (s *Service) queryAccount(ctx context.Context, userKey, queryText string, ui *domain.UIFilter, rf domain.ReasoningFilter, now time.Time) (*domain.QueryResult, error) {
	strategy, err := s.planner.Plan(userKey, rf, ui, now)
	if err != nil {
		return nil, apperr.ValidationFailed(fmt.Sprintf("invalid filter: %v", err))
	}

	exec, err := s.executor.Execute(ctx, userKey, queryText, strategy)
	if err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		UserKey:    userKey,
		Strategy:   strategy.Kind(),
		Reasoning:  rf,
		Messages:   exec.Messages,
		Candidates: exec.Candidates,
	}, nil
}

func validateQuery(queryText string, ui *domain.UIFilter) error {
	if strings.TrimSpace(queryText) == "" {
		return apperr.MissingField("query")
	}
	if err := ui.Validate(); err != nil {
		return apperr.ValidationFailed(err.Error())
	}
	return nil
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
