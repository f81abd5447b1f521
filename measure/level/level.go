// Package level measures the broadband level of a block of samples.
//
// Levels are expressed like spectral levels: dB relative to a reference
// amplitude, clamped to a floor. A Meter accumulates over many blocks and
// gives the same summary as measuring all samples at once. A weighted Meter
// also reports A- and C-weighted equivalent levels; their difference flags
// energy concentrated below about 100 Hz.
package level

import (
	"math"

	"github.com/cwbudde/lfnwatch/dsp/core"
	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
	"github.com/cwbudde/lfnwatch/dsp/filter/weighting"
)

// ClipLevel is the absolute sample value counted as clipped.
const ClipLevel = 0.999

// Summary is the level summary of a run of samples.
type Summary struct {
	Samples int
	RMS     float64
	Peak    float64
	DC      float64
	RMSDB   float64
	PeakDB  float64
	// CrestDB is peak over RMS; zero for silence.
	CrestDB float64
	Clipped int
	// NonFinite counts NaN and infinite samples. They are left out of every
	// other field.
	NonFinite int

	// Weighted reports whether LAeqDB and LCeqDB were measured.
	Weighted bool
	LAeqDB   float64
	LCeqDB   float64
}

// CMinusA returns LCeqDB - LAeqDB, or 0 for an unweighted summary.
func (s Summary) CMinusA() float64 {
	if !s.Weighted {
		return 0
	}
	return s.LCeqDB - s.LAeqDB
}

// Meter accumulates a Summary.
type Meter struct {
	reference float64
	floorDB   float64

	n         int
	sum       float64
	sumSq     float64
	peak      float64
	clipped   int
	nonFinite int

	aFilter, cFilter *biquad.Interleaved
	sumSqA, sumSqC   float64
	scratch          []float64
}

// NewMeter returns a meter for the given reference amplitude and floor.
func NewMeter(reference, floorDB float64) *Meter {
	return &Meter{reference: reference, floorDB: floorDB}
}

// Weight enables A and C weighting for channel-interleaved samples at
// sampleRate. Filter state then carries across Update calls, so the meter
// must see one continuous stream.
func (m *Meter) Weight(sampleRate float64, channels int) error {
	ca, err := weighting.Coefficients(weighting.A, sampleRate)
	if err != nil {
		return err
	}
	cc, err := weighting.Coefficients(weighting.C, sampleRate)
	if err != nil {
		return err
	}
	channels = max(channels, 1)
	m.aFilter = biquad.NewInterleaved(ca, channels)
	m.cFilter = biquad.NewInterleaved(cc, channels)
	return nil
}

// Update adds samples.
func (m *Meter) Update(samples []float64) {
	if m.aFilter != nil {
		m.updateWeighted(samples)
	}
	for _, x := range samples {
		if !finite(x) {
			m.nonFinite++
			continue
		}
		m.n++
		m.sum += x
		m.sumSq += x * x
		a := math.Abs(x)
		if a > m.peak {
			m.peak = a
		}
		if a >= ClipLevel {
			m.clipped++
		}
	}
}

// updateWeighted feeds non-finite samples to the filters as silence so one
// bad sample cannot poison their state.
func (m *Meter) updateWeighted(samples []float64) {
	if cap(m.scratch) < len(samples) {
		m.scratch = make([]float64, len(samples))
	}
	buf := m.scratch[:len(samples)]

	for pass, f := range []*biquad.Interleaved{m.aFilter, m.cFilter} {
		for i, x := range samples {
			if !finite(x) {
				x = 0
			}
			buf[i] = x
		}
		f.ProcessInterleaved(buf)
		sum := 0.0
		for i, x := range buf {
			if finite(samples[i]) {
				sum += x * x
			}
		}
		if pass == 0 {
			m.sumSqA += sum
		} else {
			m.sumSqC += sum
		}
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Summary returns the levels accumulated so far.
func (m *Meter) Summary() Summary {
	s := Summary{
		Samples:   m.n,
		Clipped:   m.clipped,
		NonFinite: m.nonFinite,
		RMSDB:     m.floorDB,
		PeakDB:    m.floorDB,
	}
	if m.aFilter != nil {
		s.Weighted = true
		s.LAeqDB, s.LCeqDB = m.floorDB, m.floorDB
	}
	if m.n == 0 {
		return s
	}
	nf := float64(m.n)
	s.RMS = math.Sqrt(m.sumSq / nf)
	s.Peak = m.peak
	s.DC = m.sum / nf
	s.RMSDB = core.LevelDB(s.RMS, m.reference, m.floorDB)
	s.PeakDB = core.LevelDB(s.Peak, m.reference, m.floorDB)
	if s.RMS > 0 {
		s.CrestDB = core.LinearToDB(s.Peak / s.RMS)
	}
	if s.Weighted {
		s.LAeqDB = core.PowerLevelDB(m.sumSqA/nf, m.reference, m.floorDB)
		s.LCeqDB = core.PowerLevelDB(m.sumSqC/nf, m.reference, m.floorDB)
	}
	return s
}

// Take returns the summary and clears the accumulated samples, keeping the
// weighting filter state for the next stretch of the same stream.
func (m *Meter) Take() Summary {
	s := m.Summary()
	m.n, m.sum, m.sumSq, m.peak = 0, 0, 0, 0
	m.clipped, m.nonFinite = 0, 0
	m.sumSqA, m.sumSqC = 0, 0
	return s
}

// Reset clears the accumulated samples and the weighting filter state.
func (m *Meter) Reset() {
	m.Take()
	if m.aFilter != nil {
		m.aFilter.Reset()
		m.cFilter.Reset()
	}
}

// Measure summarizes samples in one call.
func Measure(samples []float64, reference, floorDB float64) Summary {
	m := NewMeter(reference, floorDB)
	m.Update(samples)
	return m.Summary()
}
