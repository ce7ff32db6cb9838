package chi

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/health"
	"github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

// Ingestor runs the ingest pipeline.
type Ingestor interface {
	IngestFile(ctx context.Context, path string, opts ingest.Options) (ingest.Result, error)
	IngestText(ctx context.Context, text, sourceName string, opts ingest.Options) (ingest.Result, error)
}

// Querier answers similarity queries.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]domain.QueryResult, error)
}

// Resetter clears all stored entries.
type Resetter interface {
	Reset(ctx context.Context) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
