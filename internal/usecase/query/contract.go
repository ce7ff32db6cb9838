package query

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher answers top-k similarity queries.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.QueryResult, error)
}
