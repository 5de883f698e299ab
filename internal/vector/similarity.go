package vector

import (
	"math"
	"sort"
)

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// mergeTopK sorts matches by descending score, ties broken by ID, and keeps the first k.
func mergeTopK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// scanVector returns a unit vector used for filter-only scans.
func scanVector(dims int) []float32 {
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = 1
	}
	return v
}
