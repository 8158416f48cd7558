// Package similarity holds the vector math shared by semantic search and the
// in-process store. Distances follow the pgvector `<=>` convention: cosine
// distance on a 0..2 scale.
package similarity

import (
	"fmt"
	"math"

	"github.com/xxxsen/docsearch/internal/model"
	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
)

// CheckDimension rejects vectors whose length differs from the stored dimension.
func CheckDimension(v []float32) error {
	if len(v) != model.EmbeddingDimension {
		return fmt.Errorf("%w: got %d, want %d", appErr.ErrDimensionMismatch, len(v), model.EmbeddingDimension)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). A zero-norm side is treated as
// orthogonal and yields 1 rather than NaN.
func CosineDistance(a, b []float32) (float64, error) {
	if err := CheckDimension(a); err != nil {
		return 0, err
	}
	if err := CheckDimension(b); err != nil {
		return 0, err
	}
	return cosineDistance(a, b), nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

// Similarity converts a cosine distance back to a similarity.
func Similarity(distance float64) float64 {
	return 1 - distance
}

// MaxDistance converts a minimum similarity into the matching distance cutoff.
func MaxDistance(minSimilarity float64) float64 {
	return 1 - minSimilarity
}

// Round4 rounds to four decimal places, the precision scores are reported at.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
