// Package store implements a durable vector store with exact brute-force
// nearest-neighbor search.
//
// Entries live in a SQLite database; searches run against an in-memory
// copy-on-write snapshot, so readers never block writers and never observe
// a batch partially applied.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const schemaVersion = 1

const (
	metaSchemaVersion = "schema_version"
	metaMetric        = "metric"
	metaDimension     = "dimension"
)

// Store persists (text, embedding, metadata) triples and answers top-k
// similarity queries. The first successful Add establishes the embedding
// dimension; Reset clears it along with all entries.
type Store struct {
	db     *sql.DB
	path   string
	metric domain.Metric
	logger *zap.Logger

	mu   sync.Mutex // serializes Add and Reset
	snap atomic.Pointer[snapshot]
}

// Open creates or reopens a store at path with the given similarity metric.
// Reopening an existing store with a different metric fails: existing
// rankings would become inconsistent with new queries.
func Open(path string, metric domain.Metric, logger *zap.Logger) (*Store, error) {
	if _, err := domain.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create store directory: %w", domain.ErrPersistence, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", domain.ErrPersistence, err)
	}

	s := &Store{db: db, path: path, metric: metric, logger: logger}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	snap, err := s.loadSnapshot()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.snap.Store(snap)

	logger.Info("vector store opened",
		zap.String("path", path),
		zap.String("metric", string(metric)),
		zap.Int("entries", len(snap.entries)),
		zap.Int("dimension", snap.dim),
	)
	return s, nil
}

// Metric returns the similarity metric the store was created with.
func (s *Store) Metric() domain.Metric { return s.metric }

// Count returns the number of persisted entries.
func (s *Store) Count() int { return len(s.snap.Load().entries) }

// Dimension returns the established embedding dimension, 0 if unbound.
func (s *Store) Dimension() int { return s.snap.Load().dim }

// Add persists a batch of parallel (text, embedding, metadata) triples and
// returns the assigned insertion ids. The batch is all-or-nothing: any
// invalid element, persistence failure, or cancellation leaves the store
// exactly as it was.
func (s *Store) Add(
	ctx context.Context, texts []string, embeddings [][]float32, metadatas []domain.Metadata,
) ([]int64, error) {
	if len(embeddings) != len(texts) {
		return nil, domain.NewConfigError("embeddings", len(embeddings),
			fmt.Sprintf("must match texts length %d", len(texts)))
	}
	if metadatas == nil {
		metadatas = make([]domain.Metadata, len(texts))
	}
	if len(metadatas) != len(texts) {
		return nil, domain.NewConfigError("metadatas", len(metadatas),
			fmt.Sprintf("must match texts length %d", len(texts)))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap.Load()
	want := prev.dim
	if want == 0 {
		want = len(embeddings[0])
		if want == 0 {
			return nil, domain.NewConfigError("embeddings", 0, "empty embedding vector")
		}
	}
	for i, vec := range embeddings {
		if len(vec) != want {
			return nil, domain.NewDimensionMismatch(want, len(vec), i)
		}
	}
	for i, m := range metadatas {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("metadata at batch index %d: %w", i, err)
		}
	}

	ids, added, err := s.insertBatch(ctx, texts, embeddings, metadatas, prev.dim == 0, want)
	if err != nil {
		return nil, err
	}

	s.snap.Store(prev.withAppended(want, added))
	return ids, nil
}

func (s *Store) insertBatch(
	ctx context.Context, texts []string, embeddings [][]float32, metadatas []domain.Metadata,
	bindDim bool, dim int,
) ([]int64, []domain.StoreEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin batch: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries(text, embedding, metadata) VALUES(?, ?, ?)`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: prepare insert: %w", domain.ErrPersistence, err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(texts))
	added := make([]domain.StoreEntry, 0, len(texts))
	for i := range texts {
		entryMeta := normalizeMetadata(metadatas[i])
		meta, err := encodeMetadata(entryMeta)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		res, err := stmt.ExecContext(ctx, texts[i], encodeEmbedding(embeddings[i]), meta)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: insert entry: %w", domain.ErrPersistence, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: entry id: %w", domain.ErrPersistence, err)
		}
		ids = append(ids, id)
		added = append(added, domain.StoreEntry{
			ID:        id,
			Text:      texts[i],
			Embedding: embeddings[i],
			Metadata:  entryMeta,
		})
	}

	if bindDim {
		if err := setMeta(ctx, tx, metaDimension, strconv.Itoa(dim)); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: commit batch: %w", domain.ErrPersistence, err)
	}
	return ids, added, nil
}

// Search returns the top min(k, Count) entries by similarity to the query
// vector, best first, ties broken by ascending insertion id. An empty store
// yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]domain.QueryResult, error) {
	if k <= 0 {
		return nil, domain.NewConfigError("k", k, "must be >= 1")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.snap.Load()
	if snap.dim > 0 && len(query) != snap.dim {
		return nil, domain.NewDimensionMismatch(snap.dim, len(query), -1)
	}
	return snap.search(s.metric, query, k), nil
}

// Reset irreversibly clears all entries and the dimension binding. A
// subsequent Add may establish a new dimension.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin reset: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("%w: clear entries: %w", domain.ErrPersistence, err)
	}
	// Restart id assignment from 1 for the next lifecycle.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'entries'`); err != nil {
		return fmt.Errorf("%w: reset id sequence: %w", domain.ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM store_meta WHERE key = ?`, metaDimension); err != nil {
		return fmt.Errorf("%w: clear dimension: %w", domain.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reset: %w", domain.ErrPersistence, err)
	}

	s.snap.Store(emptySnapshot)
	s.logger.Info("vector store reset", zap.String("path", s.path))
	return nil
}

// Ping checks that the underlying database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrPersistence, err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '{}'
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("%w: ensure schema: %w", domain.ErrPersistence, err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin meta check: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	version, ok, err := getMeta(ctx, tx, metaSchemaVersion)
	if err != nil {
		return err
	}
	if !ok {
		if err := setMeta(ctx, tx, metaSchemaVersion, strconv.Itoa(schemaVersion)); err != nil {
			return err
		}
	} else if version != strconv.Itoa(schemaVersion) {
		return fmt.Errorf("%w: unsupported schema version %s (want %d)",
			domain.ErrPersistence, version, schemaVersion)
	}

	metric, ok, err := getMeta(ctx, tx, metaMetric)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		if err := setMeta(ctx, tx, metaMetric, string(s.metric)); err != nil {
			return err
		}
	case metric != string(s.metric):
		return domain.NewConfigError("metric", string(s.metric),
			fmt.Sprintf("store was created with metric %q", metric))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit meta: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) loadSnapshot() (*snapshot, error) {
	ctx := context.Background()

	var dim int
	row := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaDimension)
	var dimStr string
	switch err := row.Scan(&dimStr); err {
	case nil:
		d, convErr := strconv.Atoi(dimStr)
		if convErr != nil {
			return nil, fmt.Errorf("%w: corrupt dimension %q", domain.ErrPersistence, dimStr)
		}
		dim = d
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("%w: read dimension: %w", domain.ErrPersistence, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, metadata FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: load entries: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var entries []domain.StoreEntry
	for rows.Next() {
		var (
			e    domain.StoreEntry
			blob []byte
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.Text, &blob, &meta); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", domain.ErrPersistence, err)
		}
		if e.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", domain.ErrPersistence, e.ID, err)
		}
		if e.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", domain.ErrPersistence, e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load entries: %w", domain.ErrPersistence, err)
	}
	return &snapshot{dim: dim, entries: entries}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMeta(ctx context.Context, q execer, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value)
	switch err {
	case nil:
		return value, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%w: read meta %s: %w", domain.ErrPersistence, key, err)
	}
}

func setMeta(ctx context.Context, q execer, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO store_meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("%w: write meta %s: %w", domain.ErrPersistence, key, err)
	}
	return nil
}
