package ai

import "math"

// CosineSimilarity computes the similarity between two embedding vectors.
// Returns 1.0 for identical directions and 0.0 for orthogonal, mismatched or
// zero vectors. Results are clamped to [0, 1] so downstream edge weights stay
// inside their documented bounds.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Min(1.0, math.Max(0.0, sim))
}

// CosineDistance is 1 - CosineSimilarity, used by density clustering.
func CosineDistance(a, b []float32) float64 {
	return 1.0 - CosineSimilarity(a, b)
}
