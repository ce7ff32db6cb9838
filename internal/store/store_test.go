package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func openTestStore(t *testing.T, metric domain.Metric) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path, metric, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestAddThenSearch_TopRankSelfSimilarity(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	v1 := []float32{0.1, 0.9, 0.3}
	ids, err := s.Add(ctx,
		[]string{"paris is the capital of france"},
		[][]float32{v1},
		nil,
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("ids = %v, want [1]", ids)
	}

	results, err := s.Search(ctx, v1, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Entry.Text != "paris is the capital of france" {
		t.Errorf("text = %q", r.Entry.Text)
	}
	if math.Abs(r.Score-1.0) > 1e-6 {
		t.Errorf("self-similarity score = %v, want 1.0", r.Score)
	}
	if r.Rank != 1 {
		t.Errorf("rank = %d, want 1", r.Rank)
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearch_InvalidK(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)

	for _, k := range []int{0, -1} {
		_, err := s.Search(context.Background(), []float32{1}, k)
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("k=%d: error = %v, want ErrInvalidConfig", k, err)
		}
	}
}

func TestSearch_RankingAndTies(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	// Entries 2 and 3 are identical vectors: the tie must resolve by
	// ascending insertion id.
	_, err := s.Add(ctx,
		[]string{"far", "near-a", "near-b", "exact"},
		[][]float32{
			{0, 1},
			{1, 0.5},
			{1, 0.5},
			{1, 0},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	wantTexts := []string{"exact", "near-a", "near-b"}
	for i, want := range wantTexts {
		if results[i].Entry.Text != want {
			t.Errorf("rank %d: text = %q, want %q", i+1, results[i].Entry.Text, want)
		}
		if results[i].Rank != i+1 {
			t.Errorf("rank field = %d, want %d", results[i].Rank, i+1)
		}
	}
	if results[1].Score != results[2].Score {
		t.Fatalf("expected tied scores, got %v vs %v", results[1].Score, results[2].Score)
	}
	if results[1].Entry.ID >= results[2].Entry.ID {
		t.Errorf("tie not broken by ascending id: %d then %d", results[1].Entry.ID, results[2].Entry.ID)
	}

	// k larger than entry count returns everything.
	results, err = s.Search(ctx, []float32{1, 0}, 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("got %d results, want 4", len(results))
	}
}

func TestAdd_DimensionMismatchIsAtomic(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	if _, err := s.Add(ctx, []string{"a"}, [][]float32{{1, 2, 3}}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Second element of the batch disagrees: the whole batch must be
	// rejected with no partial persistence.
	_, err := s.Add(ctx,
		[]string{"b", "c"},
		[][]float32{{4, 5, 6}, {7, 8}},
		nil,
	)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	var dimErr *domain.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatal("error should carry DimensionMismatchError detail")
	}
	if dimErr.Want != 3 || dimErr.Got != 2 || dimErr.Index != 1 {
		t.Errorf("detail = %+v", dimErr)
	}

	if got := s.Count(); got != 1 {
		t.Errorf("count after failed batch = %d, want 1", got)
	}
}

func TestAdd_ParallelSliceValidation(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	_, err := s.Add(ctx, []string{"a", "b"}, [][]float32{{1}}, nil)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("length mismatch error = %v, want ErrInvalidConfig", err)
	}

	_, err = s.Add(ctx, []string{"a"}, [][]float32{{1}}, []domain.Metadata{{}, {}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("metadata length mismatch error = %v, want ErrInvalidConfig", err)
	}

	_, err = s.Add(ctx, []string{"a"}, [][]float32{{1}},
		[]domain.Metadata{{"bad": []string{"x"}}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("invalid metadata error = %v, want ErrInvalidConfig", err)
	}
	if s.Count() != 0 {
		t.Errorf("count = %d after rejected batches, want 0", s.Count())
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	if _, err := s.Add(ctx, []string{"a"}, [][]float32{{1, 2, 3}}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err := s.Search(ctx, []float32{1, 2}, 1)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestReset_ClearsEntriesAndDimension(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	if _, err := s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 2}, {3, 4}}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if s.Count() != 0 {
		t.Errorf("count = %d after reset, want 0", s.Count())
	}
	results, err := s.Search(ctx, []float32{1, 2}, 5)
	if err != nil {
		t.Fatalf("Search after reset: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results after reset, want 0", len(results))
	}

	// Dimension binding is cleared: a new dimension may be established,
	// and ids restart from 1.
	ids, err := s.Add(ctx, []string{"c"}, [][]float32{{1, 2, 3, 4, 5}}, nil)
	if err != nil {
		t.Fatalf("Add after reset: %v", err)
	}
	if s.Dimension() != 5 {
		t.Errorf("dimension = %d, want 5", s.Dimension())
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("ids after reset = %v, want [1]", ids)
	}
}

func TestReopen_ReproducesSearchResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s, err := Open(path, domain.MetricCosine, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = s.Add(ctx,
		[]string{"alpha", "beta", "gamma"},
		[][]float32{{1, 0, 0}, {0.7, 0.7, 0}, {0, 0, 1}},
		[]domain.Metadata{
			{"source": "a.txt", "chunk_index": 0.0},
			{"source": "b.txt", "chunk_index": 1.0},
			nil,
		},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	query := []float32{1, 0.1, 0}
	before, err := s.Search(ctx, query, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, domain.MetricCosine, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Count() != 3 || reopened.Dimension() != 3 {
		t.Fatalf("reopened count=%d dim=%d, want 3/3", reopened.Count(), reopened.Dimension())
	}
	after, err := reopened.Search(ctx, query, 3)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("result count changed across reopen: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if after[i].Entry.ID != before[i].Entry.ID ||
			after[i].Entry.Text != before[i].Entry.Text ||
			after[i].Score != before[i].Score ||
			after[i].Rank != before[i].Rank {
			t.Errorf("result %d differs across reopen:\nbefore %+v\nafter  %+v",
				i, before[i], after[i])
		}
	}
	if got := after[0].Entry.Metadata["source"]; got != "a.txt" {
		t.Errorf("metadata source = %v, want a.txt", got)
	}
}

func TestAdd_MetadataNumericsStableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	s, err := Open(path, domain.MetricCosine, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = s.Add(ctx,
		[]string{"alpha"},
		[][]float32{{1, 0}},
		[]domain.Metadata{{
			"chunk_index": 3,
			"token_count": int64(12),
			"weight":      float32(1.5),
			"source":      "a.txt",
			"pinned":      true,
		}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	before, err := s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Numerics are widened to float64 at write time, matching the JSON codec.
	if got := before[0].Entry.Metadata["chunk_index"]; got != float64(3) {
		t.Errorf("chunk_index = %v (%T), want float64 3", got, got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, domain.MetricCosine, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	after, err := reopened.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if !reflect.DeepEqual(after[0].Entry.Metadata, before[0].Entry.Metadata) {
		t.Errorf("metadata changed across reopen:\nbefore %#v\nafter  %#v",
			before[0].Entry.Metadata, after[0].Entry.Metadata)
	}
}

func TestReopen_MetricConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path, domain.MetricCosine, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = Open(path, domain.MetricL2, zap.NewNop())
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestOpen_InvalidMetric(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "s.db"), "dotproduct", zap.NewNop())
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestL2Metric_Ranking(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricL2)
	ctx := context.Background()

	_, err := s.Add(ctx,
		[]string{"near", "far"},
		[][]float32{{1, 1}, {10, 10}},
		nil,
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := s.Search(ctx, []float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Entry.Text != "near" {
		t.Errorf("top result = %q, want near", results[0].Entry.Text)
	}
	if results[0].Score != 0 {
		t.Errorf("self-similarity under l2 = %v, want 0", results[0].Score)
	}
	if results[1].Score >= results[0].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestAdd_CancelledContextPersistsNothing(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Add(ctx, []string{"a"}, [][]float32{{1, 2}}, nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if s.Count() != 0 {
		t.Errorf("count = %d after cancelled add, want 0", s.Count())
	}

	// The store stays usable.
	if _, err := s.Add(context.Background(), []string{"a"}, [][]float32{{1, 2}}, nil); err != nil {
		t.Fatalf("Add after cancellation: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}
}

func TestConcurrentAdds_NoLostEntries(t *testing.T) {
	s, _ := openTestStore(t, domain.MetricCosine)
	ctx := context.Background()

	const (
		writers = 8
		batches = 10
		perB    = 3
	)

	var wg sync.WaitGroup
	errs := make(chan error, writers+4)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				texts := make([]string, perB)
				vecs := make([][]float32, perB)
				for i := range texts {
					texts[i] = fmt.Sprintf("w%d-b%d-%d", w, b, i)
					vecs[i] = []float32{float32(w), float32(b), float32(i)}
				}
				if _, err := s.Add(ctx, texts, vecs, nil); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}

	// Readers race the writers; every observed result set must be
	// internally consistent (ranks 1..n, scores non-increasing).
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				results, err := s.Search(ctx, []float32{1, 1, 1}, 10)
				if err != nil {
					errs <- err
					return
				}
				for j := range results {
					if results[j].Rank != j+1 {
						errs <- fmt.Errorf("rank %d at position %d", results[j].Rank, j)
						return
					}
					if j > 0 && results[j].Score > results[j-1].Score {
						errs <- fmt.Errorf("scores out of order at %d", j)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got, want := s.Count(), writers*batches*perB; got != want {
		t.Fatalf("count = %d, want %d", got, want)
	}
}

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	vecs := [][]float32{
		nil,
		{0},
		{1.5, -2.25, 3.75},
		{math.MaxFloat32, math.SmallestNonzeroFloat32},
	}
	for _, v := range vecs {
		got, err := decodeEmbedding(encodeEmbedding(v))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != len(v) {
			t.Fatalf("length %d, want %d", len(got), len(v))
		}
		for i := range v {
			if got[i] != v[i] {
				t.Errorf("element %d: %v != %v", i, got[i], v[i])
			}
		}
	}

	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
