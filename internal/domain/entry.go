package domain

import "fmt"

// Metadata maps string keys to scalar values (string, bool, or numeric).
// Open-ended on keys, closed on value types; Validate rejects anything else.
type Metadata map[string]any

// Validate checks that every value is a supported scalar type.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case string, bool,
			int, int32, int64,
			float32, float64:
		default:
			return NewConfigError("metadata."+k, v, fmt.Sprintf("unsupported value type %T", v))
		}
	}
	return nil
}

// StoreEntry is a persisted (text, embedding, metadata) triple.
// ID is assigned by the store and reflects insertion order.
type StoreEntry struct {
	ID        int64
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// QueryResult is a single ranked search hit.
// Rank is 1-based; ties are broken by ascending entry ID.
type QueryResult struct {
	Entry StoreEntry
	Score float64
	Rank  int
}
