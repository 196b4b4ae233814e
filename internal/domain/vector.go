package domain

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths or zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SimilarityScore maps a cosine similarity onto [0, 1] by clamping negatives,
// matching the max(0, 1-distance) convention of the vector stores.
func SimilarityScore(cos float64) float64 {
	return math.Max(0, math.Min(1, cos))
}
