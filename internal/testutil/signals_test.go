package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 4000, 2, 4)
	RequireClose(t, s, []float64{0, 2, 0, -2}, 1e-12)
}

func TestDeterministicNoiseRepeatable(t *testing.T) {
	a := DeterministicNoise(7, 0.5, 64)
	b := DeterministicNoise(7, 0.5, 64)
	RequireClose(t, a, b, 0)
	for _, v := range a {
		if math.Abs(v) > 0.5 {
			t.Fatalf("noise sample %v exceeds amplitude", v)
		}
	}
}

func TestMixAndInterleave(t *testing.T) {
	m := Mix([]float64{1, 1, 1}, []float64{1})
	RequireClose(t, m, []float64{2, 1, 1}, 0)

	il := Interleave([]float64{1, 2}, []float64{3, 4})
	RequireClose(t, il, []float64{1, 3, 2, 4}, 0)
}

func TestRequireLevelPasses(t *testing.T) {
	RequireLevel(t, "level", 93.98, 94, 0.05)
	RequireFinite(t, []float64{0, -120, 1e300})
}
