package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
)

// VectorStore is a brute-force cosine index over message embeddings.
// It understands the same metadata filter as the pgvector store.
type VectorStore struct {
	mu      sync.RWMutex
	entries map[string][]vectorEntry // namespace -> entries
}

type vectorEntry struct {
	msg       *domain.Message
	embedding []float32
	norm      float64
}

var _ out.VectorStore = (*VectorStore)(nil)

func NewVectorStore() *VectorStore {
	return &VectorStore{entries: make(map[string][]vectorEntry)}
}

// Upsert stores the embedding of m under namespace, replacing any previous one.
func (s *VectorStore) Upsert(namespace string, m *domain.Message, embedding []float32) {
	e := vectorEntry{msg: m, embedding: embedding, norm: norm(embedding)}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[namespace]
	i := slices.IndexFunc(list, func(x vectorEntry) bool {
		return x.msg.UserKey == m.UserKey && x.msg.ID == m.ID
	})
	if i >= 0 {
		list[i] = e
	} else {
		list = append(list, e)
	}
	s.entries[namespace] = list
}

// Index embeds every message with embedder and stores the result.
func (s *VectorStore) Index(ctx context.Context, namespace string, embedder out.Embedder, msgs ...*domain.Message) error {
	for _, m := range msgs {
		v, err := embedder.Embed(ctx, EmbeddingText(m))
		if err != nil {
			return fmt.Errorf("embed %s: %w", m.ID, err)
		}
		s.Upsert(namespace, m, v)
	}
	return nil
}

// EmbeddingText is the text a message is embedded from.
func EmbeddingText(m *domain.Message) string {
	return strings.TrimSpace(m.Subject + "\n" + m.Body)
}

func (s *VectorStore) SearchVector(_ context.Context, namespace string, embedding []float32, filter domain.VectorPredicate, topK int) ([]out.VectorHit, error) {
	if !filter.IsScoped() {
		return nil, out.ErrUnscopedPredicate
	}
	if topK <= 0 {
		return nil, nil
	}
	qn := norm(embedding)

	s.mu.RLock()
	var hits []out.VectorHit
	for _, e := range s.entries[namespace] {
		ok, err := matchesVector(filter, e.msg)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if !ok {
			continue
		}
		hits = append(hits, out.VectorHit{
			ID:      e.msg.ID,
			UserKey: e.msg.UserKey,
			Score:   cosine(embedding, qn, e.embedding, e.norm),
		})
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b out.VectorHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func matchesVector(filter domain.VectorPredicate, m *domain.Message) (bool, error) {
	for field, cond := range filter {
		for op, want := range cond {
			switch op {
			case domain.VecIn:
				values, _ := want.([]string)
				if !slices.ContainsFunc(stringField(m, field), func(v string) bool { return slices.Contains(values, v) }) {
					return false, nil
				}
			case domain.VecGte, domain.VecLte:
				if field != string(domain.FieldCreatedAt) {
					return false, fmt.Errorf("range on non-numeric field %q", field)
				}
				bound, _ := want.(int64)
				if op == domain.VecGte && m.CreatedAt < bound || op == domain.VecLte && m.CreatedAt > bound {
					return false, nil
				}
			default:
				return false, fmt.Errorf("unsupported vector operator %q", op)
			}
		}
	}
	return true, nil
}

func stringField(m *domain.Message, field string) []string {
	switch field {
	case domain.VectorUserKeyField:
		return []string{m.UserKey}
	case string(domain.FieldID):
		return []string{m.ID}
	case string(domain.FieldProvider):
		return []string{string(m.Provider)}
	case string(domain.FieldSender):
		return []string{m.Sender}
	case string(domain.FieldRecipients):
		return m.Recipients
	}
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
