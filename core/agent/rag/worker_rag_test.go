package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"

	"github.com/google/go-cmp/cmp"
)

type countingEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	last  string
	mu    sync.Mutex
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.last = text
	e.mu.Unlock()
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type mapRemote struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (m *mapRemote) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]float32)) = v
	return true, nil
}

func (m *mapRemote) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]float32)
	return nil
}

type fakeVectorStore struct {
	hits      []out.VectorHit
	gotFilter domain.VectorPredicate
	gotTopK   int
}

func (f *fakeVectorStore) SearchVector(_ context.Context, _ string, _ []float32, filter domain.VectorPredicate, topK int) ([]out.VectorHit, error) {
	f.gotFilter = filter
	f.gotTopK = topK
	return f.hits, nil
}

func TestCompileVectorFilter(t *testing.T) {
	filter := domain.NewVectorPredicate("uk-1").
		In("id", []string{"m1", "m2"}).
		In("recipients", []string{"bob@x.com"}).
		Gte("created_at", 100).
		Lte("created_at", 200)

	where, args, err := compileVectorFilter(filter, []any{"vec", "ns"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantWhere := "created_at >= $3 AND created_at <= $4 AND message_id = ANY($5) AND recipients && $6 AND user_key = ANY($7)"
	if where != wantWhere {
		t.Errorf("where mismatch\n got: %s\nwant: %s", where, wantWhere)
	}
	wantArgs := []any{"vec", "ns", int64(100), int64(200), []string{"m1", "m2"}, []string{"bob@x.com"}, []string{"uk-1"}}
	if diff := cmp.Diff(wantArgs, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileVectorFilter_UnknownField(t *testing.T) {
	filter := domain.NewVectorPredicate("uk").In("subject", []string{"x"})
	if _, _, err := compileVectorFilter(filter, nil); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestPgVector(t *testing.T) {
	if got := pgVector([]float32{0.5, -1}); got != "[0.500000,-1.000000]" {
		t.Errorf("unexpected vector literal %s", got)
	}
	if got := pgVector(nil); got != "[0]" {
		t.Errorf("unexpected empty literal %s", got)
	}
}

func TestEmbedder_PrepareText(t *testing.T) {
	e := NewEmbedder(&countingEmbedder{}, 0)
	if got := e.PrepareText("  what   did\n jane say "); got != "what did jane say" {
		t.Errorf("unexpected normalisation %q", got)
	}

	short := NewEmbedder(&countingEmbedder{}, 10)
	if got := short.PrepareText("  what   did\n jane say "); got != "what did j" {
		t.Errorf("expected truncation after collapsing, got %q", got)
	}

	// "é" is two bytes, so a 9 byte budget backs off to 8.
	odd := NewEmbedder(&countingEmbedder{}, 9)
	if got := odd.PrepareText(strings.Repeat("é", 20)); got != strings.Repeat("é", 4) {
		t.Errorf("truncation broke a rune: %q", got)
	}
}

func TestEmbeddingCache_TTLAndEviction(t *testing.T) {
	c := NewEmbeddingCache(&EmbeddingCacheConfig{MaxSize: 2, TTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", []float32{1})
	now = now.Add(time.Second)
	c.Set("b", []float32{2})
	now = now.Add(time.Second)
	c.Set("c", []float32{3}) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected newest entry to be cached")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("b"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestCachedEmbedder_L1L2(t *testing.T) {
	inner := &countingEmbedder{}
	remote := &mapRemote{data: map[string][]float32{}}
	ce := NewCachedEmbedder(inner, "m", nil, remote, time.Hour)

	first, err := ce.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ce.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
	if len(remote.data) != 1 {
		t.Errorf("expected value written to l2")
	}

	// A fresh process with an empty L1 is served from L2.
	inner2 := &countingEmbedder{}
	ce2 := NewCachedEmbedder(inner2, "m", nil, remote, time.Hour)
	got, err := ce2.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner2.calls.Load() != 0 {
		t.Error("expected l2 hit without upstream call")
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("l2 value mismatch (-want +got):\n%s", diff)
	}

	// Model is part of the key.
	ce3 := NewCachedEmbedder(inner2, "other-model", nil, remote, time.Hour)
	if _, err := ce3.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner2.calls.Load() != 1 {
		t.Error("expected a different model to miss the cache")
	}
}

func TestCachedEmbedder_SingleFlight(t *testing.T) {
	inner := &countingEmbedder{delay: 50 * time.Millisecond}
	ce := NewCachedEmbedder(inner, "m", nil, nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ce.Embed(context.Background(), "same question"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := inner.calls.Load(); n != 1 {
		t.Errorf("expected concurrent callers to share one call, got %d", n)
	}
}

type gatedEmbedder struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (e *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	close(e.entered)
	<-e.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{float32(len(text))}, nil
}

func TestCachedEmbedder_CancelledCallerDoesNotFailSharers(t *testing.T) {
	inner := &gatedEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
	ce := NewCachedEmbedder(inner, "m", nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := ce.Embed(ctx, "shared")
		first <- err
	}()
	<-inner.entered
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to stop waiting, got %v", err)
	}

	second := make(chan error, 1)
	go func() {
		v, err := ce.Embed(context.Background(), "shared")
		if err == nil && len(v) != 1 {
			err = errors.New("unexpected vector")
		}
		second <- err
	}()
	close(inner.release)
	if err := <-second; err != nil {
		t.Fatalf("sharer failed: %v", err)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota")}
	ce := NewCachedEmbedder(inner, "m", nil, nil, 0)

	for i := 0; i < 2; i++ {
		if _, err := ce.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("failures must not be cached, got %d calls", n)
	}
}

func TestRetriever_Search(t *testing.T) {
	store := &fakeVectorStore{hits: []out.VectorHit{
		{ID: "low", Score: 0.2},
		{ID: "high", Score: 0.9},
		{ID: "mid", Score: 0.5},
	}}
	r := NewRetriever(&countingEmbedder{}, store)

	filter := domain.NewVectorPredicate("uk")
	hits, err := r.Search(context.Background(), "messages", "q", filter, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "high" || hits[1].ID != "mid" {
		t.Errorf("expected [high mid], got %+v", hits)
	}
	if store.gotTopK != 2 {
		t.Errorf("expected topK passed through, got %d", store.gotTopK)
	}
}

func TestRetriever_RejectsUnscopedFilter(t *testing.T) {
	r := NewRetriever(&countingEmbedder{}, &fakeVectorStore{})

	_, err := r.Search(context.Background(), "messages", "q", domain.VectorPredicate{}, 5)
	if !errors.Is(err, out.ErrUnscopedPredicate) {
		t.Errorf("expected ErrUnscopedPredicate, got %v", err)
	}
	_, err = r.Search(context.Background(), "messages", "q", domain.NewVectorPredicate(""), 5)
	if !errors.Is(err, out.ErrUnscopedPredicate) {
		t.Errorf("expected ErrUnscopedPredicate for empty key, got %v", err)
	}
}

func TestRetriever_ZeroTopK(t *testing.T) {
	emb := &countingEmbedder{}
	r := NewRetriever(emb, &fakeVectorStore{})
	hits, err := r.Search(context.Background(), "messages", "q", domain.NewVectorPredicate("uk"), 0)
	if err != nil || len(hits) != 0 {
		t.Errorf("expected no hits and no error, got %v, %v", hits, err)
	}
	if emb.calls.Load() != 0 {
		t.Error("expected no embedding call for topK 0")
	}
}
