package design

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
)

// ErrInvalidDesign reports parameters that cannot produce a stable filter.
var ErrInvalidDesign = errors.New("design: invalid filter parameters")

// ButterworthHP returns an order-n Butterworth high-pass cascade cornered at
// freq: n/2 second-order sections, plus a first-order section last when n is
// odd.
func ButterworthHP(freq float64, order int, sampleRate float64) ([]biquad.Coefficients, error) {
	switch {
	case order <= 0:
		return nil, fmt.Errorf("%w: order %d", ErrInvalidDesign, order)
	case !(sampleRate > 0) || math.IsInf(sampleRate, 0):
		return nil, fmt.Errorf("%w: sample rate %v", ErrInvalidDesign, sampleRate)
	case !(freq > 0) || freq >= sampleRate/2:
		return nil, fmt.Errorf("%w: corner %v Hz outside (0, %v)", ErrInvalidDesign, freq, sampleRate/2)
	}

	sections := make([]biquad.Coefficients, 0, (order+1)/2)
	for i := range order / 2 {
		sections = append(sections, HighpassQ(freq, butterworthQ(order, i), sampleRate))
	}
	if order%2 == 1 {
		sections = append(sections, FirstOrderHP(freq, sampleRate))
	}
	return sections, nil
}

// butterworthQ is the quality factor of the i-th conjugate pole pair.
func butterworthQ(order, i int) float64 {
	theta := math.Pi * float64(2*i+1) / float64(2*order)
	return 1 / (2 * math.Sin(theta))
}
