package weighting

import (
	"errors"
	"math"
	"testing"
)

type point struct{ freq, dB float64 }

// IEC 61672-1 Table 3.
var (
	aTable = []point{
		{10, -70.4}, {16, -56.7}, {20, -50.5}, {31.5, -39.4}, {40, -34.6},
		{50, -30.2}, {63, -26.2}, {80, -22.5}, {100, -19.1}, {125, -16.1},
		{200, -10.9}, {500, -3.2}, {1000, 0}, {2000, 1.2}, {4000, 1.0},
		{8000, -1.1}, {12500, -4.3}, {16000, -6.6},
	}
	cTable = []point{
		{10, -14.3}, {16, -8.5}, {20, -6.2}, {31.5, -3.0}, {40, -2.0},
		{50, -1.3}, {63, -0.8}, {80, -0.5}, {100, -0.3}, {125, -0.2},
		{200, 0}, {500, 0}, {1000, 0}, {2000, -0.2}, {4000, -0.8},
		{8000, -3.0}, {12500, -6.2}, {16000, -8.5},
	}
)

// tolerance widens toward Nyquist where the bilinear transform compresses
// the response.
func tolerance(freq, rate float64) float64 {
	switch r := freq / rate; {
	case r > 0.3:
		return 5
	case r > 0.2:
		return 1.5
	case r > 0.1:
		return 1
	default:
		return 0.5
	}
}

func TestCurvesMatchTable(t *testing.T) {
	for _, tc := range []struct {
		curve Curve
		table []point
	}{{A, aTable}, {C, cTable}} {
		for _, rate := range []float64{8000, 44100, 48000, 96000} {
			chain, err := New(tc.curve, rate)
			if err != nil {
				t.Fatalf("%v @ %v: %v", tc.curve, rate, err)
			}
			for _, p := range tc.table {
				if p.freq >= rate/2 {
					continue
				}
				got := chain.MagnitudeDB(p.freq, rate)
				if d := math.Abs(got - p.dB); d > tolerance(p.freq, rate) {
					t.Errorf("%v @ %v Hz, fs %v: %.2f dB, want %.1f", tc.curve, p.freq, rate, got, p.dB)
				}
			}
		}
	}
}

func TestReferenceIsUnity(t *testing.T) {
	for _, c := range []Curve{A, C, Z} {
		chain, err := New(c, 48000)
		if err != nil {
			t.Fatal(err)
		}
		if got := chain.MagnitudeDB(ReferenceHz, 48000); math.Abs(got) > 1e-9 {
			t.Fatalf("%v: %.3g dB at 1 kHz", c, got)
		}
	}
}

func TestSectionCounts(t *testing.T) {
	cases := []struct {
		curve Curve
		rate  float64
		want  int
	}{
		{A, 48000, 5},
		{C, 48000, 3},
		{A, 16000, 3},
		{C, 16000, 1},
		{Z, 48000, 1},
	}
	for _, tc := range cases {
		coeffs, err := Coefficients(tc.curve, tc.rate)
		if err != nil {
			t.Fatal(err)
		}
		if len(coeffs) != tc.want {
			t.Fatalf("%v @ %v: %d sections, want %d", tc.curve, tc.rate, len(coeffs), tc.want)
		}
	}
}

// C minus A is large for a 50 Hz tone and near zero at 1 kHz.
func TestCMinusA(t *testing.T) {
	a, _ := New(A, 48000)
	c, _ := New(C, 48000)
	if d := c.MagnitudeDB(50, 48000) - a.MagnitudeDB(50, 48000); d < 28 || d > 30 {
		t.Fatalf("C-A at 50 Hz = %.2f dB", d)
	}
	if d := c.MagnitudeDB(1000, 48000) - a.MagnitudeDB(1000, 48000); math.Abs(d) > 1e-9 {
		t.Fatalf("C-A at 1 kHz = %v dB", d)
	}
}

func TestErrors(t *testing.T) {
	for _, rate := range []float64{0, -1, 2000, math.NaN(), math.Inf(1)} {
		if _, err := Coefficients(A, rate); !errors.Is(err, ErrSampleRate) {
			t.Fatalf("rate %v: err = %v", rate, err)
		}
	}
	if _, err := Coefficients(Curve(9), 48000); err == nil {
		t.Fatal("unknown curve accepted")
	}
}

func TestParseCurve(t *testing.T) {
	for in, want := range map[string]Curve{"a": A, " C ": C, "Z": Z} {
		got, err := ParseCurve(in)
		if err != nil || got != want {
			t.Fatalf("ParseCurve(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCurve("B"); err == nil {
		t.Fatal("B accepted")
	}
	if s := Curve(7).String(); s != "Curve(7)" {
		t.Fatalf("String = %q", s)
	}
}
