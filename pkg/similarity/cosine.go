// Package similarity provides vector similarity and comment clustering.
package similarity

import "math"

// Cosine computes the cosine similarity between two embedding vectors.
// Returns a value in [-1, 1]. Mismatched lengths, empty vectors, and zero
// vectors all yield 0 so callers can treat the pair as "not similar"
// without a separate validity check.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
