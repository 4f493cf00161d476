package utils

import "math"

// CosineSimilarity calculates the cosine similarity between two float32 vectors.
// Returns 0 if vectors have different lengths, are empty, or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Magnitude calculates the Euclidean magnitude (L2 norm) of a float32 vector.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Empty and zero vectors are
// returned as an unchanged copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	mag := Magnitude(v)
	if mag == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
