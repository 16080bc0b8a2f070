package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
)

// QueryTransformer converts UI and reasoning filters into backend predicates.
type QueryTransformer struct {
	loc *time.Location
}

// NewQueryTransformer creates a transformer that reads UI dates in loc.
func NewQueryTransformer(loc *time.Location) *QueryTransformer {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryTransformer{loc: loc}
}

// ToStorePredicate builds the message store predicate.
//
// An explicit UI date window always wins: when the UI sets start_date or
// end_date the reasoning dates are ignored. Otherwise a reasoning $gte opens a
// window that closes at the reasoning $lte, or at now when there is none.
// A nil result means "no predicate".
func (t *QueryTransformer) ToStorePredicate(rf domain.ReasoningFilter, ui *domain.UIFilter, now time.Time) (domain.Predicate, error) {
	var leaves []domain.Predicate

	if !ui.HasDateRange() {
		if gte, ok := rf.Bound(domain.OpGte); ok {
			lte, ok := rf.Bound(domain.OpLte)
			if !ok {
				lte = now.Unix()
			}
			leaves = append(leaves, domain.Range{Field: domain.FieldCreatedAt, Gte: domain.Int64(gte), Lte: domain.Int64(lte)})
		}
	}

	uiLeaves, err := t.uiLeaves(ui)
	if err != nil {
		return nil, err
	}
	leaves = append(leaves, uiLeaves...)

	return domain.AllOf(leaves...), nil
}

func (t *QueryTransformer) uiLeaves(ui *domain.UIFilter) ([]domain.Predicate, error) {
	if ui == nil {
		return nil, nil
	}
	var leaves []domain.Predicate

	if tags := ui.ProviderTags(); len(tags) > 0 {
		leaves = append(leaves, domain.In{Field: domain.FieldProvider, Values: tags})
	}
	if recipients := normalizeAddresses(ui.Recipients); len(recipients) > 0 {
		leaves = append(leaves, domain.In{Field: domain.FieldRecipients, Values: recipients})
	}
	if from := strings.TrimSpace(ui.FromEmail); from != "" {
		leaves = append(leaves, domain.Eq{Field: domain.FieldSender, Value: from})
	}

	window, err := t.uiWindow(ui)
	if err != nil {
		return nil, err
	}
	if window != nil {
		leaves = append(leaves, *window)
	}
	return leaves, nil
}

// uiWindow returns the created_at range selected in the UI, or nil.
func (t *QueryTransformer) uiWindow(ui *domain.UIFilter) (*domain.Range, error) {
	start, hasStart, err := ui.StartUnix(t.loc)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, hasEnd, err := ui.EndUnix(t.loc)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if !hasStart && !hasEnd {
		return nil, nil
	}

	r := domain.Range{Field: domain.FieldCreatedAt}
	if hasStart {
		r.Gte = domain.Int64(start)
	}
	if hasEnd {
		r.Lte = domain.Int64(end)
	}
	return &r, nil
}

// ToVectorPredicate builds the vector index filter from the UI filter only.
// It is always scoped to userKey; matchIDs, when given, restricts the search to those ids.
func (t *QueryTransformer) ToVectorPredicate(userKey string, matchIDs []string, ui *domain.UIFilter) (domain.VectorPredicate, error) {
	p := domain.NewVectorPredicate(userKey)
	if len(matchIDs) > 0 {
		p.In(string(domain.FieldID), matchIDs)
	}
	if ui == nil {
		return p, nil
	}

	p.In(string(domain.FieldProvider), ui.ProviderTags())
	p.In(string(domain.FieldRecipients), normalizeAddresses(ui.Recipients))
	if from := strings.TrimSpace(ui.FromEmail); from != "" {
		p.In(string(domain.FieldSender), []string{from})
	}

	window, err := t.uiWindow(ui)
	if err != nil {
		return nil, err
	}
	if window != nil {
		if window.Gte != nil {
			p.Gte(string(domain.FieldCreatedAt), *window.Gte)
		}
		if window.Lte != nil {
			p.Lte(string(domain.FieldCreatedAt), *window.Lte)
		}
	}
	return p, nil
}

// SenderWindowPredicate selects messages from any of senders inside [from, to].
// Either bound may be nil.
func (t *QueryTransformer) SenderWindowPredicate(senders []string, from, to *int64) domain.Predicate {
	var senderLeaves []domain.Predicate
	for _, s := range normalizeAddresses(senders) {
		senderLeaves = append(senderLeaves, domain.Eq{Field: domain.FieldSender, Value: s})
	}

	var window domain.Predicate
	if from != nil || to != nil {
		window = domain.Range{Field: domain.FieldCreatedAt, Gte: from, Lte: to}
	}
	return domain.AllOf(domain.AnyOf(senderLeaves...), window)
}

func normalizeAddresses(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
