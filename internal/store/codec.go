package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// encodeEmbedding packs a vector as a little-endian sequence of IEEE 754
// float32 values. The dimension is derived from the blob size on decode.
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not a multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// normalizeMetadata widens numeric values to float64, the type the JSON
// codec hands back on load, so an entry's in-memory metadata is identical
// before and after a reopen.
func normalizeMetadata(m domain.Metadata) domain.Metadata {
	out := make(domain.Metadata, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}

func encodeMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		m = domain.Metadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// decodeMetadata parses a persisted metadata document. Numeric values come
// back as float64, the widest scalar the metadata contract allows.
func decodeMetadata(data []byte) (domain.Metadata, error) {
	m := domain.Metadata{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
