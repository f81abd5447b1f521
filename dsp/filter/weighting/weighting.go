package weighting

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
	"github.com/cwbudde/lfnwatch/dsp/filter/design"
)

// Analog prototype pole frequencies in Hz.
const (
	f1 = 20.598997 // double, A and C
	f2 = 107.65265 // A only
	f4 = 737.86223 // A only
	f5 = 12194.217 // double, A and C
)

// ReferenceHz is the frequency of 0 dB gain.
const ReferenceHz = 1000.0

// ErrSampleRate reports a sample rate too low to place the 1 kHz reference
// below Nyquist.
var ErrSampleRate = errors.New("weighting: sample rate too low")

// Curve selects a weighting curve.
type Curve int

const (
	// A approximates the 40-phon equal-loudness contour.
	A Curve = iota
	// C is nearly flat from 31.5 Hz to 8 kHz.
	C
	// Z is unweighted.
	Z
)

func (c Curve) String() string {
	switch c {
	case A:
		return "A"
	case C:
		return "C"
	case Z:
		return "Z"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// ParseCurve accepts "A", "C" or "Z" in either case.
func ParseCurve(s string) (Curve, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return A, nil
	case "C":
		return C, nil
	case "Z":
		return Z, nil
	}
	return 0, fmt.Errorf("weighting: unknown curve %q", s)
}

// Coefficients returns the sections of curve c at sampleRate, with the 1 kHz
// normalization folded into the first section.
func Coefficients(c Curve, sampleRate float64) ([]biquad.Coefficients, error) {
	if !(sampleRate > 2*ReferenceHz) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: %v Hz", ErrSampleRate, sampleRate)
	}

	var sections []biquad.Coefficients
	switch c {
	case A:
		sections = []biquad.Coefficients{
			design.HighpassQ(f1, 0.5, sampleRate),
			design.FirstOrderHP(f2, sampleRate),
			design.FirstOrderHP(f4, sampleRate),
		}
	case C:
		sections = []biquad.Coefficients{design.HighpassQ(f1, 0.5, sampleRate)}
	case Z:
		return []biquad.Coefficients{{B0: 1}}, nil
	default:
		return nil, fmt.Errorf("weighting: unknown curve %v", c)
	}
	if f5 < sampleRate/2 {
		lp := design.FirstOrderLP(f5, sampleRate)
		sections = append(sections, lp, lp)
	}

	g := 1.0
	for i := range sections {
		g *= sections[i].MagnitudeSquared(ReferenceHz, sampleRate)
	}
	sections[0] = sections[0].Scaled(1 / math.Sqrt(g))
	return sections, nil
}

// New returns a single-channel weighting filter.
func New(c Curve, sampleRate float64) (*biquad.Chain, error) {
	coeffs, err := Coefficients(c, sampleRate)
	if err != nil {
		return nil, err
	}
	return biquad.NewChain(coeffs), nil
}
