// Package memory provides in-process adapters for local development and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/paging"

	"github.com/goccy/go-json"
)

// MessageStore keeps messages in memory, partitioned by user key and kept
// in (created_at DESC, id DESC) order. It pages exactly like the database
// backends so callers see the same cap and cursor behaviour.
type MessageStore struct {
	mu         sync.RWMutex
	partitions map[string][]*domain.Message
	pageSize   int
}

var _ out.MessageStore = (*MessageStore)(nil)

func NewMessageStore() *MessageStore {
	return &MessageStore{partitions: make(map[string][]*domain.Message), pageSize: out.DefaultPageSize}
}

// Put inserts or replaces messages.
func (s *MessageStore) Put(msgs ...*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, m := range msgs {
		part := s.partitions[m.UserKey]
		if i := slices.IndexFunc(part, func(e *domain.Message) bool { return e.ID == m.ID }); i >= 0 {
			part[i] = m
		} else {
			part = append(part, m)
		}
		s.partitions[m.UserKey] = part
		touched[m.UserKey] = true
	}
	for key := range touched {
		slices.SortFunc(s.partitions[key], domain.SortByCreatedDesc)
	}
}

// LoadFile seeds the store from a JSON array of messages.
func (s *MessageStore) LoadFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var msgs []*domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}
	s.Put(msgs...)
	return len(msgs), nil
}

// QueryByPredicate pages through the partition until maxItems match.
func (s *MessageStore) QueryByPredicate(ctx context.Context, userKey string, predicate domain.Predicate, maxItems int) ([]*domain.Message, error) {
	fetch := func(_ context.Context, token string, limit int) (paging.Page[*domain.Message], error) {
		cursor, err := paging.DecodeCursor(token)
		if err != nil {
			return paging.Page[*domain.Message]{}, err
		}

		s.mu.RLock()
		defer s.mu.RUnlock()

		var items []*domain.Message
		for _, m := range s.partitions[userKey] {
			if cursor != nil && !after(m, cursor) {
				continue
			}
			if domain.Matches(predicate, m) {
				items = append(items, m)
			}
			if len(items) == limit {
				break
			}
		}
		return paging.Page[*domain.Message]{Items: items, Next: paging.NextCursor(items, limit, messageCursor)}, nil
	}

	return paging.Collect(ctx, fetch, s.pageSize, maxItems)
}

func (s *MessageStore) GetByID(_ context.Context, userKey, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.partitions[userKey] {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

// All returns every stored message, partition by partition.
func (s *MessageStore) All() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.partitions))
	for k := range s.partitions {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var all []*domain.Message
	for _, k := range keys {
		all = append(all, s.partitions[k]...)
	}
	return all
}

// after reports whether m sorts strictly after the cursor position.
func after(m *domain.Message, c *paging.Cursor) bool {
	return m.CreatedAt < c.CreatedAt || (m.CreatedAt == c.CreatedAt && m.ID < c.ID)
}

func messageCursor(m *domain.Message) paging.Cursor {
	return paging.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// AccountRepository links accounts in memory.
type AccountRepository struct {
	mu     sync.RWMutex
	linked map[string][]*domain.Account
}

var _ out.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{linked: make(map[string][]*domain.Account)}
}

// Link attaches accounts to ownerKey.
func (r *AccountRepository) Link(ownerKey string, accounts ...*domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linked[ownerKey] = append(r.linked[ownerKey], accounts...)
}

func (r *AccountRepository) ListAccounts(_ context.Context, ownerKey string, providers []string) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(providers) == 0 {
		return slices.Clone(r.linked[ownerKey]), nil
	}
	var accounts []*domain.Account
	for _, a := range r.linked[ownerKey] {
		if slices.Contains(providers, string(a.Provider)) {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}
