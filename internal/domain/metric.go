package domain

import "math"

// Metric is the similarity function used to rank stored entries against a
// query vector. Fixed per store instance at creation.
type Metric string

const (
	// MetricCosine ranks by cosine similarity (self-similarity 1.0).
	MetricCosine Metric = "cosine"
	// MetricL2 ranks by negative Euclidean distance (self-similarity 0.0).
	MetricL2 Metric = "l2"
)

// ParseMetric validates a metric identifier.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2:
		return Metric(s), nil
	default:
		return "", NewConfigError("metric", s, `must be "cosine" or "l2"`)
	}
}

// Score computes the similarity of two equal-dimension vectors.
// Higher is always better regardless of metric. A zero-magnitude vector
// under cosine scores 0 against everything.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	default: // cosine
		var dot, na2, nb2 float64
		for i := range a {
			va, vb := float64(a[i]), float64(b[i])
			dot += va * vb
			na2 += va * va
			nb2 += vb * vb
		}
		if na2 == 0 || nb2 == 0 {
			return 0
		}
		return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	}
}
