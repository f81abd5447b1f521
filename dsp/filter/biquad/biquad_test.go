package biquad

import (
	"math"
	"testing"

	"github.com/cwbudde/lfnwatch/internal/testutil"
)

// An arbitrary stable section.
var testCoeffs = Coefficients{B0: 0.2, B1: 0.1, B2: 0.05, A1: -0.5, A2: 0.1}

func TestProcessBlockMatchesProcessSample(t *testing.T) {
	in := testutil.DeterministicNoise(3, 1, 257)

	a := NewSection(testCoeffs)
	want := make([]float64, len(in))
	for i, x := range in {
		want[i] = a.ProcessSample(x)
	}

	b := NewSection(testCoeffs)
	got := append([]float64(nil), in...)
	b.ProcessBlock(got[:100])
	b.ProcessBlock(got[100:])

	testutil.RequireClose(t, got, want, 1e-15)
	if a.State() != b.State() {
		t.Fatalf("state mismatch: %v vs %v", a.State(), b.State())
	}

	b.Reset()
	if b.State() != [2]float64{} {
		t.Fatal("Reset did not clear state")
	}
}

func TestChainCascades(t *testing.T) {
	c := NewChain([]Coefficients{testCoeffs, testCoeffs})
	s1, s2 := NewSection(testCoeffs), NewSection(testCoeffs)

	for i := 0; i < 50; i++ {
		x := math.Sin(float64(i))
		if got, want := c.ProcessSample(x), s2.ProcessSample(s1.ProcessSample(x)); got != want {
			t.Fatalf("sample %d: %v != %v", i, got, want)
		}
	}
	if c.NumSections() != 2 {
		t.Fatalf("NumSections = %d", c.NumSections())
	}
	single := NewChain([]Coefficients{testCoeffs})
	if d := c.MagnitudeDB(1000, 48000) - 2*single.MagnitudeDB(1000, 48000); math.Abs(d) > 1e-12 {
		t.Fatalf("cascade response off by %v dB", d)
	}
}

func TestInterleavedKeepsChannelsApart(t *testing.T) {
	left := testutil.DeterministicNoise(1, 1, 64)
	right := make([]float64, 64)
	buf := testutil.Interleave(left, right)

	f := NewInterleaved([]Coefficients{testCoeffs}, 2)
	f.ProcessInterleaved(buf)

	ref := NewChain([]Coefficients{testCoeffs})
	for i := range left {
		if want := ref.ProcessSample(left[i]); buf[2*i] != want {
			t.Fatalf("left %d: %v != %v", i, buf[2*i], want)
		}
		if buf[2*i+1] != 0 {
			t.Fatalf("right channel picked up signal at %d", i)
		}
	}
	if f.Channels() != 2 {
		t.Fatalf("Channels = %d", f.Channels())
	}
}
