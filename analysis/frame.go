package analysis

// Downmixed is the Channel value of frames computed from the channel mean.
const Downmixed = -1

// SpectralFrame is the level spectrum of one analysis frame.
type SpectralFrame struct {
	// Levels holds Size/2+1 bins in dB relative to the analyzer reference.
	Levels []float64
	// BinHz is the width of one bin.
	BinHz float64
	// Offset is the first sample frame of the analysis window within the block.
	Offset int
	// Channel is the source channel, or Downmixed.
	Channel    int
	Size       int
	SampleRate float64
	// Padded reports that the block was shorter than Size and zero-padded.
	Padded bool
}

// Frequency returns the center frequency of bin k.
func (f SpectralFrame) Frequency(k int) float64 {
	return float64(k) * f.BinHz
}

// MaxHold returns a frame whose levels are the per-bin maximum over frames.
// All frames must share one size. The result takes its metadata from the
// first frame. It returns false for an empty input.
func MaxHold(frames []SpectralFrame) (SpectralFrame, bool) {
	if len(frames) == 0 {
		return SpectralFrame{}, false
	}
	out := frames[0]
	out.Levels = append([]float64(nil), frames[0].Levels...)
	for _, fr := range frames[1:] {
		for k, v := range fr.Levels {
			if k < len(out.Levels) && v > out.Levels[k] {
				out.Levels[k] = v
			}
		}
		out.Padded = out.Padded || fr.Padded
	}
	return out, true
}
