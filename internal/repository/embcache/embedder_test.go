package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	"github.com/kailas-cloud/ragdex/internal/domain"
)

// memKV is an in-memory db.KVStore for tests.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return m.Set(ctx, key, value)
}

type countingEmbedder struct {
	calls      int
	batchCalls int
	dim        int
}

func (e *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls++
	return domain.EmbeddingResult{Embedding: e.vecFor(text), TotalTokens: 7}, nil
}

func (e *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batchCalls++
	out := domain.BatchEmbeddingResult{TotalTokens: 7 * len(texts)}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, e.vecFor(t))
	}
	return out, nil
}

func (e *countingEmbedder) vecFor(text string) []float32 {
	vec := make([]float32, e.dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec
}

func TestEmbed_CachesSecondCall(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	c := New(inner, newMemKV(), nil, zap.NewNop())
	ctx := context.Background()

	first, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if len(second.Embedding) != len(first.Embedding) {
		t.Fatalf("cached vector length %d != %d", len(second.Embedding), len(first.Embedding))
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Errorf("cached vector differs at %d", i)
		}
	}
	if second.TotalTokens != 0 {
		t.Errorf("cache hit reported %d tokens, want 0", second.TotalTokens)
	}
}

func TestBatchEmbed_OnlyMissesHitProvider(t *testing.T) {
	inner := &countingEmbedder{dim: 2}
	c := New(inner, newMemKV(), nil, zap.NewNop())
	ctx := context.Background()

	if _, err := c.Embed(ctx, "cached"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	res, err := c.BatchEmbed(ctx, []string{"cached", "fresh-one", "fresh-two"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("got %d vectors, want 3", len(res.Embeddings))
	}
	for i, vec := range res.Embeddings {
		if len(vec) != 2 {
			t.Errorf("vector %d has dimension %d", i, len(vec))
		}
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", inner.batchCalls)
	}
	// Token usage counts only the misses.
	if res.TotalTokens != 14 {
		t.Errorf("total tokens = %d, want 14", res.TotalTokens)
	}

	// All three are now cached.
	res, err = c.BatchEmbed(ctx, []string{"fresh-one", "fresh-two"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("batch calls after warm cache = %d, want 1", inner.batchCalls)
	}
	if res.TotalTokens != 0 {
		t.Errorf("total tokens on full hit = %d, want 0", res.TotalTokens)
	}
}

// singleOnly has no BatchEmbed; the decorator must fall back to per-text calls.
type singleOnly struct {
	inner countingEmbedder
}

func (s *singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

func TestBatchEmbed_FallbackWithoutBatchSupport(t *testing.T) {
	inner := &singleOnly{inner: countingEmbedder{dim: 2}}
	c := New(inner, newMemKV(), nil, zap.NewNop())

	res, err := c.BatchEmbed(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("got %d vectors, want 2", len(res.Embeddings))
	}
	if inner.inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.inner.calls)
	}
}
