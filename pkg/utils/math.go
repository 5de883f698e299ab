package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm and returns the original norm.
// A zero vector is left unchanged.
func NormalizeL2(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return 0
	}
	norm := math.Sqrt(sum)
	inv := float32(1 / norm)
	for i := range x {
		x[i] *= inv
	}
	return norm
}
