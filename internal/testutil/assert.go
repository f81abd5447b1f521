// Package testutil holds assertion helpers and deterministic signal
// generators shared by the package tests.
package testutil

import (
	"math"
	"testing"
)

// RequireClose fails t unless got and want have equal length and every pair
// is within eps.
func RequireClose(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(got[i] - want[i]); d > eps || math.IsNaN(d) {
			t.Fatalf("[%d] = %v, want %v (off by %v, eps %v)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireFinite fails t on any NaN or infinite value.
func RequireFinite(t testing.TB, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("[%d] = %v, want finite", i, v)
		}
	}
}

// RequireLevel fails t unless gotDB is within tolDB of wantDB.
func RequireLevel(t testing.TB, what string, gotDB, wantDB, tolDB float64) {
	t.Helper()
	if !(math.Abs(gotDB-wantDB) <= tolDB) {
		t.Fatalf("%s = %.2f dB, want %.2f ± %.2f", what, gotDB, wantDB, tolDB)
	}
}
