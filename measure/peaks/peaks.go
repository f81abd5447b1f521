package peaks

import (
	"math"
	"sort"

	"github.com/cwbudde/lfnwatch/dsp/spectrum"
)

// MaxPeaks is the upper bound on records per band.
const MaxPeaks = 10

// Record is one ranked peak.
type Record struct {
	FrequencyHz float64
	LevelDB     float64
	Band        Band
	// Rank starts at 1 for the strongest peak.
	Rank int
	// Bin is the spectrum index the peak was read from.
	Bin int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPeaks limits the number of records per band. Values outside
// 1..MaxPeaks are clamped.
func WithMaxPeaks(k int) Option {
	return func(e *Extractor) {
		e.maxPeaks = min(max(k, 1), MaxPeaks)
	}
}

// WithMinSpacingHz sets the minimum distance between two reported peaks.
// Zero selects two bin widths.
func WithMinSpacingHz(hz float64) Option {
	return func(e *Extractor) {
		if hz >= 0 {
			e.minSpacingHz = hz
		}
	}
}

// Extractor finds band peaks in a level spectrum.
type Extractor struct {
	maxPeaks     int
	minSpacingHz float64
}

// NewExtractor returns an Extractor with K=MaxPeaks and automatic spacing.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{maxPeaks: MaxPeaks}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

// MaxPeaks returns the configured record limit.
func (e *Extractor) MaxPeaks() int { return e.maxPeaks }

// Extract returns the ranked peaks of levels (dB per bin, bin k at k*binHz)
// that fall inside r.
//
// Local maxima are compared against neighbors outside the band too, so a
// slope that peaks just outside the range does not produce an edge peak. If
// the range holds bins but no local maximum, the strongest bin is reported
// alone. A range with no bins yields nil.
func (e *Extractor) Extract(levels []float64, binHz float64, r Range) []Record {
	lo, hi, ok := spectrum.BinRange(r.LowHz, r.HighHz, binHz, len(levels))
	if !ok {
		return nil
	}

	var cands []Record
	for k := lo; k <= hi; k++ {
		if isLocalMax(levels, k) {
			cands = append(cands, Record{FrequencyHz: float64(k) * binHz, LevelDB: levels[k], Band: r.Band, Bin: k})
		}
	}
	if len(cands) == 0 {
		best := lo
		for k := lo + 1; k <= hi; k++ {
			if levels[k] > levels[best] {
				best = k
			}
		}
		return []Record{{FrequencyHz: float64(best) * binHz, LevelDB: levels[best], Band: r.Band, Rank: 1, Bin: best}}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].LevelDB != cands[j].LevelDB {
			return cands[i].LevelDB > cands[j].LevelDB
		}
		return cands[i].FrequencyHz < cands[j].FrequencyHz
	})

	spacing := e.minSpacingHz
	if spacing == 0 {
		spacing = 2 * binHz
	}

	out := make([]Record, 0, e.maxPeaks)
	for _, c := range cands {
		if len(out) == e.maxPeaks {
			break
		}
		if tooClose(out, c.FrequencyHz, spacing) {
			continue
		}
		c.Rank = len(out) + 1
		out = append(out, c)
	}
	return out
}

// isLocalMax treats a plateau as one peak at its lowest bin.
func isLocalMax(levels []float64, k int) bool {
	if k > 0 && !(levels[k] > levels[k-1]) {
		return false
	}
	if k < len(levels)-1 && !(levels[k] >= levels[k+1]) {
		return false
	}
	return true
}

func tooClose(accepted []Record, f, spacing float64) bool {
	for _, a := range accepted {
		if math.Abs(a.FrequencyHz-f) < spacing {
			return true
		}
	}
	return false
}

// Top returns the strongest record, or false for an empty list.
func Top(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	return records[0], true
}
