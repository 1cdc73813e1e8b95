// Package embedding finds the category of the most similar prior
// transactions or labeled examples by nearest-neighbor search over stored
// description embeddings. This package never generates embeddings; vectors
// are produced asynchronously by an external worker.
package embedding

import (
	"math"
	"sort"

	"github.com/arthaledger/artha/internal/service"
)

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either vector is empty, zero, or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

// Nearest is a brute-force k-nearest-neighbor search over vectors already in
// memory: up to k neighbors clearing minSimilarity, most similar first. A
// non-empty excludeID drops the row with that id before searching.
func Nearest(stored []service.StoredVector, vector []float32, k int, minSimilarity float64, excludeID string) []service.Neighbor {
	var neighbors []service.Neighbor
	for i := range stored {
		if excludeID != "" && stored[i].ID == excludeID {
			continue
		}
		sim := CosineSimilarity(vector, stored[i].Vector)
		if sim < minSimilarity {
			continue
		}
		neighbors = append(neighbors, service.Neighbor{
			ID:              stored[i].ID,
			CategorySlug:    stored[i].CategorySlug,
			SubcategorySlug: stored[i].SubcategorySlug,
			Similarity:      sim,
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}
