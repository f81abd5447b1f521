package buffer

// Buffer holds Frames() frames of Channels() interleaved samples.
type Buffer struct {
	samples  []float64
	channels int
}

// New returns a zeroed buffer. A channel count below one is treated as one.
func New(frames, channels int) *Buffer {
	b := &Buffer{channels: max(channels, 1)}
	b.SetFrames(frames)
	return b
}

// Samples returns the interleaved samples.
func (b *Buffer) Samples() []float64 { return b.samples }

// Channels returns the channel count.
func (b *Buffer) Channels() int { return b.channels }

// Frames returns the number of frames.
func (b *Buffer) Frames() int { return len(b.samples) / b.channels }

// SetFrames changes the frame count, reusing capacity. Frames exposed by
// growing are zero.
func (b *Buffer) SetFrames(n int) {
	n = max(n, 0) * b.channels
	old := len(b.samples)
	if n > cap(b.samples) {
		s := make([]float64, n)
		copy(s, b.samples)
		b.samples = s
		return
	}
	b.samples = b.samples[:n]
	if n > old {
		clear(b.samples[old:])
	}
}

// Span returns the samples of frames [from, from+n).
func (b *Buffer) Span(from, n int) []float64 {
	return b.samples[from*b.channels : (from+n)*b.channels]
}

// CopyFloat32 converts interleaved device samples into the buffer starting
// at frame from. It copies whole frames only, as many as fit, and returns
// how many.
func (b *Buffer) CopyFloat32(from int, src []float32) int {
	n := min(len(src)/b.channels, b.Frames()-from)
	if n <= 0 {
		return 0
	}
	dst := b.Span(from, n)
	for i, v := range src[:len(dst)] {
		dst[i] = float64(v)
	}
	return n
}
