package analysis

import (
	"time"

	"github.com/cwbudde/lfnwatch/measure/level"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

// BandPeaks holds the ranked peaks of one band for one analyzed channel.
type BandPeaks struct {
	Band peaks.Band
	// Channel is the source channel, or Downmixed.
	Channel int
	Peaks   []peaks.Record
}

// Result is the analysis record of one block or file. It is built once and
// handed to sinks; nothing retains or modifies it afterwards.
type Result struct {
	Source     string
	BlockIndex int
	Timestamp  time.Time
	Duration   time.Duration
	SampleRate float64
	BinHz      float64
	Bands      []BandPeaks
	// Alerts lists the bands whose top peak exceeded the threshold.
	Alerts []peaks.Band
	// Backend names the transform backend that produced the spectrum.
	Backend string
	// Level is the broadband level of the block's samples, all channels.
	Level level.Summary
}

// Peaks returns the peak lists of band b, one per analyzed channel.
func (r *Result) Peaks(b peaks.Band) []BandPeaks {
	var out []BandPeaks
	for _, bp := range r.Bands {
		if bp.Band == b {
			out = append(out, bp)
		}
	}
	return out
}

// Top returns the strongest peak of band b over all channels.
func (r *Result) Top(b peaks.Band) (peaks.Record, bool) {
	var (
		best  peaks.Record
		found bool
	)
	for _, bp := range r.Bands {
		if bp.Band != b {
			continue
		}
		top, ok := peaks.Top(bp.Peaks)
		if !ok {
			continue
		}
		if !found || top.LevelDB > best.LevelDB ||
			(top.LevelDB == best.LevelDB && top.FrequencyHz < best.FrequencyHz) {
			best, found = top, true
		}
	}
	return best, found
}

// Alerted reports whether band b is flagged.
func (r *Result) Alerted(b peaks.Band) bool {
	for _, a := range r.Alerts {
		if a == b {
			return true
		}
	}
	return false
}

// Build runs the extractor over each spectrum for every range and returns the
// peak lists in range order, then channel order.
func Build(spectra []SpectralFrame, ex *peaks.Extractor, ranges []peaks.Range) []BandPeaks {
	out := make([]BandPeaks, 0, len(spectra)*len(ranges))
	for _, r := range ranges {
		for _, sp := range spectra {
			out = append(out, BandPeaks{
				Band:    r.Band,
				Channel: sp.Channel,
				Peaks:   ex.Extract(sp.Levels, sp.BinHz, r),
			})
		}
	}
	return out
}
