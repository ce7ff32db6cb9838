package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/extract"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	"github.com/kailas-cloud/ragdex/internal/store"
	"github.com/kailas-cloud/ragdex/internal/tokenizer"
	openaiEmb "github.com/kailas-cloud/ragdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/ragdex/internal/usecase/query"
)

// embedder is the full capability set produced by the decorator chain.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// app wires the composition root shared by all commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
	cache  db.Store // nil unless cache.driver is redis
	emb    embedder
	ingest *ingestuc.Service
	query  *queryuc.Service
	health *healthuc.Service
}

// buildApp loads configuration and assembles all services.
func buildApp(ctx context.Context) (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	metric, err := domain.ParseMetric(cfg.Store.Metric)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path, metric, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st}

	if cfg.Cache.Driver == "redis" {
		cache, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := cache.WaitForReady(ctx, timeout); err != nil {
			cache.Close()
			a.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.cache = cache
	}

	a.emb = buildEmbedder(cfg, a.cache, logger)

	tok, err := tokenizer.NewTiktoken(cfg.Tokenizer.Encoding)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	var chunkOpts []chunker.Option
	if cfg.Chunking.Boundary.Enabled {
		chunkOpts = append(chunkOpts, chunker.WithBoundaryAlignment(cfg.Chunking.Boundary.Radius))
	}
	chk := chunker.New(tok, chunkOpts...)

	a.ingest = ingestuc.New(extract.New(), chk, a.emb, st, ingestuc.Options{
		MaxTokens:       cfg.Chunking.MaxTokens,
		OverlapFraction: cfg.Chunking.OverlapFraction,
	})
	a.query = queryuc.New(a.emb, st)
	a.health = healthuc.New(st, newEmbeddingHealthChecker(a.emb))

	logger.Info("ragdex initialized",
		zap.String("env", env),
		zap.String("store_path", cfg.Store.Path),
		zap.String("metric", cfg.Store.Metric),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Int("store_entries", st.Count()),
	)
	return a, nil
}

// Close releases the store and cache connections.
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, cache db.Store, logger *zap.Logger) embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if cache != nil {
		return embcache.New(base, cache, metrics.EmbeddingCacheTotal, logger)
	}
	return base
}

// embeddingHealthChecker adapts the embedder chain to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(e domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: e}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
