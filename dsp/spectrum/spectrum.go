package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/lfnwatch/dsp/core"
)

// ErrLength reports slices whose lengths do not match the Leveler.
var ErrLength = errors.New("spectrum: length mismatch")

// AmplitudeScale returns per-bin factors under which a sinusoid centered on a
// bin reads its peak amplitude after windowing with coefficients that sum to
// windowSum. DC and Nyquist are not doubled.
func AmplitudeScale(frameSize int, windowSum float64) []float64 {
	n := frameSize/2 + 1
	if frameSize <= 0 || windowSum == 0 {
		return nil
	}
	scale := make([]float64, n)
	for k := range scale {
		scale[k] = 2 / windowSum
	}
	scale[0] = 1 / windowSum
	if frameSize%2 == 0 {
		scale[n-1] = 1 / windowSum
	}
	return scale
}

// Leveler converts bins to scaled dB levels. It reuses its scratch space and
// is not safe for concurrent use.
type Leveler struct {
	scale     []float64
	re, im    []float64
	mag       []float64
	reference float64
	floorDB   float64
}

// NewLeveler returns a Leveler for len(scale) bins. Levels are
// 20*log10(|X[k]|*scale[k]/reference), never below floorDB.
func NewLeveler(scale []float64, reference, floorDB float64) *Leveler {
	n := len(scale)
	return &Leveler{
		scale:     scale,
		re:        make([]float64, n),
		im:        make([]float64, n),
		mag:       make([]float64, n),
		reference: reference,
		floorDB:   floorDB,
	}
}

// Bins returns the number of bins handled.
func (l *Leveler) Bins() int { return len(l.scale) }

// LevelsInto writes the level of each bin into dst.
func (l *Leveler) LevelsInto(dst []float64, bins []complex128) error {
	if len(bins) != len(l.scale) || len(dst) != len(l.scale) {
		return fmt.Errorf("%w: %d bins, dst %d, want %d", ErrLength, len(bins), len(dst), len(l.scale))
	}
	for k, c := range bins {
		l.re[k], l.im[k] = real(c), imag(c)
	}
	vecmath.Magnitude(l.mag, l.re, l.im)
	vecmath.MulBlockInPlace(l.mag, l.scale)
	for k, m := range l.mag {
		dst[k] = core.LevelDB(m, l.reference, l.floorDB)
	}
	return nil
}

// Resolution returns the bin width of an n-point transform.
func Resolution(n int, sampleRate float64) float64 {
	if n <= 0 {
		return 0
	}
	return sampleRate / float64(n)
}

// BinRange returns the first and last of bins bins of width binHz whose
// center lies in [lowHz, highHz]. ok is false when none does.
func BinRange(lowHz, highHz, binHz float64, bins int) (lo, hi int, ok bool) {
	if bins <= 0 || !(binHz > 0) {
		return 0, 0, false
	}
	lo = max(int(math.Ceil(lowHz/binHz)), 0)
	hi = min(int(math.Floor(highHz/binHz)), bins-1)
	return lo, hi, lo <= hi
}
