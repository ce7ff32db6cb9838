// Package query embeds a query string and retrieves the nearest chunks.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// DefaultNumMatches is used when the caller does not specify k.
const DefaultNumMatches = 5

// Service handles similarity queries.
type Service struct {
	embedder Embedder
	store    Searcher
}

// New creates a query service.
func New(embedder Embedder, store Searcher) *Service {
	return &Service{embedder: embedder, store: store}
}

// Query embeds text and returns the top-k most similar stored chunks.
// k <= 0 defaults to DefaultNumMatches.
func (s *Service) Query(ctx context.Context, text string, k int) ([]domain.QueryResult, error) {
	if k <= 0 {
		k = DefaultNumMatches
	}

	embedded, err := s.embedder.Embed(ctx, text)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.store.Search(ctx, embedded.Embedding, k)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search: %w", err)
	}

	metrics.QueriesTotal.WithLabelValues("success").Inc()
	logger.FromContext(ctx).Info("query served",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Int("embedding_tokens", embedded.TotalTokens),
	)
	return results, nil
}
