package ingest

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Extractor turns a source file into plain text.
type Extractor interface {
	ExtractText(path string) (string, error)
}

// Chunker splits document text into token-bounded chunks.
type Chunker interface {
	Chunk(docID, text string, maxTokens int, overlapFraction float64) ([]domain.Chunk, error)
}

// Embedder vectorizes chunk texts in batch.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// EntryWriter appends entries to the vector store.
type EntryWriter interface {
	Add(ctx context.Context, texts []string, embeddings [][]float32, metadatas []domain.Metadata) ([]int64, error)
}
