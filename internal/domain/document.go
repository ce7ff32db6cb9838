package domain

// Document is a source text registered at ingest. Immutable once ingested.
type Document struct {
	ID     string // UUID assigned at ingest
	Source string // file path or caller-provided source name
	Text   string
}

// Chunk is a contiguous, token-bounded slice of a document's text.
// Offsets index into the parent document's token sequence; consecutive
// chunks overlap by the configured amount except for the final chunk.
type Chunk struct {
	DocumentID string
	Index      int // 0-based, strictly increasing within a document
	Text       string
	TokenCount int
	StartToken int
	EndToken   int // exclusive
}
