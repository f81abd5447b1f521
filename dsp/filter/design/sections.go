package design

import (
	"math"

	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
)

// HighpassQ is a second-order high-pass with quality factor q at freq. A q
// of 0.5 gives the double real pole used by the weighting curves.
func HighpassQ(freq, q, sampleRate float64) biquad.Coefficients {
	k := prewarp(freq, sampleRate)
	kq := k / q
	norm := 1 / (1 + kq + k*k)

	return biquad.Coefficients{
		B0: norm,
		B1: -2 * norm,
		B2: norm,
		A1: 2 * (k*k - 1) * norm,
		A2: (1 - kq + k*k) * norm,
	}
}

// FirstOrderHP is a single-pole high-pass at freq.
func FirstOrderHP(freq, sampleRate float64) biquad.Coefficients {
	k := prewarp(freq, sampleRate)
	norm := 1 / (1 + k)

	return biquad.Coefficients{B0: norm, B1: -norm, A1: (k - 1) * norm}
}

// FirstOrderLP is a single-pole low-pass at freq.
func FirstOrderLP(freq, sampleRate float64) biquad.Coefficients {
	k := prewarp(freq, sampleRate)
	norm := 1 / (1 + k)

	return biquad.Coefficients{B0: k * norm, B1: k * norm, A1: (k - 1) * norm}
}

func prewarp(freq, sampleRate float64) float64 {
	return math.Tan(math.Pi * freq / sampleRate)
}
