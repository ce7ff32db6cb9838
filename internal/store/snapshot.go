package store

import (
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// snapshot is an immutable view of the store's entries. Writers build a new
// snapshot and swap it in atomically; searches run against whichever snapshot
// they loaded, so a batch is never observed partially applied.
type snapshot struct {
	dim     int
	entries []domain.StoreEntry // ascending insertion id
}

var emptySnapshot = &snapshot{}

// withAppended returns a new snapshot extended by the given entries.
func (s *snapshot) withAppended(dim int, added []domain.StoreEntry) *snapshot {
	entries := make([]domain.StoreEntry, 0, len(s.entries)+len(added))
	entries = append(entries, s.entries...)
	entries = append(entries, added...)
	return &snapshot{dim: dim, entries: entries}
}

// search brute-forces the query against every stored vector and returns the
// top min(k, len) results, best score first, ties by ascending insertion id.
// Exact by construction; this is the correctness baseline.
func (s *snapshot) search(metric domain.Metric, query []float32, k int) []domain.QueryResult {
	if len(s.entries) == 0 {
		return nil
	}

	results := make([]domain.QueryResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.QueryResult{
			Entry: e,
			Score: metric.Score(query, e.Embedding),
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Entry.ID < results[b].Entry.ID
	})

	if k > len(results) {
		k = len(results)
	}
	results = results[:k]
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
