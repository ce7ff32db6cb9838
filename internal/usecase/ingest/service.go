// Package ingest sequences extraction, chunking, embedding, and storage.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// DefaultSourceName is used when raw text is ingested without a source name.
const DefaultSourceName = "string_input"

// Options tunes a single ingest call. Zero MaxTokens and negative
// OverlapFraction fall back to the service defaults.
type Options struct {
	MaxTokens       int
	OverlapFraction float64
	Tags            []string
}

// Result summarizes one ingested document.
type Result struct {
	DocumentID string
	Source     string
	ChunkCount int
	EntryIDs   []int64
}

// Service runs the ingest pipeline: extract, chunk, embed, store.
// Embedding happens before the store is touched, so provider latency is
// never paid under a store lock.
type Service struct {
	extractor Extractor
	chunker   Chunker
	embedder  Embedder
	store     EntryWriter
	defaults  Options
}

// New creates an ingest service. defaults supplies MaxTokens and
// OverlapFraction for calls that do not set them.
func New(extractor Extractor, chunker Chunker, embedder Embedder, store EntryWriter, defaults Options) *Service {
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = 512
	}
	if defaults.OverlapFraction < 0 {
		defaults.OverlapFraction = 0
	}
	return &Service{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		defaults:  defaults,
	}
}

// IngestFile extracts text from the file at path and ingests it.
func (s *Service) IngestFile(ctx context.Context, path string, opts Options) (Result, error) {
	text, err := s.extractor.ExtractText(path)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("extract %s: %w", path, err)
	}
	return s.ingest(ctx, text, filepath.Base(path), opts)
}

// IngestText ingests a raw text string. An empty sourceName defaults to
// DefaultSourceName.
func (s *Service) IngestText(ctx context.Context, text, sourceName string, opts Options) (Result, error) {
	if sourceName == "" {
		sourceName = DefaultSourceName
	}
	return s.ingest(ctx, text, sourceName, opts)
}

func (s *Service) ingest(ctx context.Context, text, source string, opts Options) (Result, error) {
	log := logger.FromContext(ctx)

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = s.defaults.MaxTokens
	}
	if opts.OverlapFraction < 0 {
		opts.OverlapFraction = s.defaults.OverlapFraction
	}

	result := Result{DocumentID: uuid.NewString(), Source: source}

	if strings.TrimSpace(text) == "" {
		log.Warn("empty text, skipping ingestion", zap.String("source", source))
		return result, nil
	}

	chunks, err := s.chunker.Chunk(result.DocumentID, text, opts.MaxTokens, opts.OverlapFraction)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("chunk %s: %w", source, err)
	}
	if len(chunks) == 0 {
		log.Warn("no chunks produced, skipping ingestion", zap.String("source", source))
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	embedded, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("embed %s: %w", source, err)
	}
	if len(embedded.Embeddings) != len(chunks) {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("embed %s: got %d vectors for %d chunks: %w",
			source, len(embedded.Embeddings), len(chunks), domain.ErrEmbeddingProviderError)
	}

	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	metadatas := make([]domain.Metadata, len(chunks))
	for i, ch := range chunks {
		m := domain.Metadata{
			"document_id": result.DocumentID,
			"source":      source,
			"chunk_index": ch.Index,
			"token_count": ch.TokenCount,
			"ingested_at": ingestedAt,
		}
		if len(opts.Tags) > 0 {
			m["tags"] = strings.Join(opts.Tags, ",")
		}
		metadatas[i] = m
	}

	ids, err := s.store.Add(ctx, texts, embedded.Embeddings, metadatas)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("store %s: %w", source, err)
	}

	result.ChunkCount = len(chunks)
	result.EntryIDs = ids

	metrics.IngestDocumentsTotal.WithLabelValues("success").Inc()
	metrics.IngestChunksTotal.Add(float64(len(chunks)))
	metrics.ChunksPerDocument.Observe(float64(len(chunks)))

	log.Info("document ingested",
		zap.String("document_id", result.DocumentID),
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedding_tokens", embedded.TotalTokens),
	)
	return result, nil
}
