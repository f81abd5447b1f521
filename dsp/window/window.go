// Package window generates the analysis windows applied to each spectral frame.
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

var errMismatchedLength = errors.New("window: samples and coefficients must have same length")

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeFlatTop
)

func (t Type) String() string {
	switch t {
	case TypeRectangular:
		return "rectangular"
	case TypeHann:
		return "hann"
	case TypeHamming:
		return "hamming"
	case TypeBlackman:
		return "blackman"
	case TypeFlatTop:
		return "flattop"
	default:
		return fmt.Sprintf("window(%d)", int(t))
	}
}

// ParseType maps a window name to its Type.
func ParseType(name string) (Type, error) {
	for t := TypeRectangular; t <= TypeFlatTop; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("window: unknown type %q", name)
}

// Option configures window generation.
type Option func(*config)

type config struct {
	periodic bool
}

// WithPeriodic selects the periodic (DFT-even) form used for FFT framing.
func WithPeriodic() Option {
	return func(c *config) { c.periodic = true }
}

// cosine-sum terms per type
var terms = map[Type][]float64{
	TypeRectangular: {1},
	TypeHann:        {0.5, 0.5},
	TypeHamming:     {0.54, 0.46},
	TypeBlackman:    {0.42, 0.5, 0.08},
	TypeFlatTop:     {0.21557895, 0.41663158, 0.277263158, 0.083578947, 0.006947368},
}

// Generate returns window coefficients of the given length.
// It returns an error for a non-positive length or unknown type.
func Generate(t Type, size int, opts ...Option) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window: size must be > 0: %d", size)
	}
	a, ok := terms[t]
	if !ok {
		return nil, fmt.Errorf("window: unknown type %d", int(t))
	}

	var cfg config
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	out := make([]float64, size)
	if size == 1 {
		out[0] = 1
		return out, nil
	}

	den := float64(size - 1)
	if cfg.periodic {
		den = float64(size)
	}

	for n := range out {
		x := 2 * math.Pi * float64(n) / den
		v, sign := 0.0, 1.0
		for k, ak := range a {
			v += sign * ak * math.Cos(float64(k)*x)
			sign = -sign
		}
		out[n] = v
	}
	return out, nil
}

// Sum returns the sum of the coefficients (N times the coherent gain).
// Dividing a spectrum bin by Sum/2 restores the amplitude of a sinusoid.
func Sum(coeffs []float64) float64 {
	return floats.Sum(coeffs)
}

// ApplyTo writes samples[i]*coeffs[i] into dst. All slices must share one length.
func ApplyTo(dst, samples, coeffs []float64) error {
	if len(samples) != len(coeffs) || len(dst) != len(samples) {
		return errMismatchedLength
	}
	vecmath.MulBlock(dst, samples, coeffs)
	return nil
}
