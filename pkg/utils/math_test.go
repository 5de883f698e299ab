package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if norm := NormalizeL2(x); norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", x)
	}

	zero := []float32{0, 0}
	if norm := NormalizeL2(zero); norm != 0 || zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
