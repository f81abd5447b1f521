package analysis

import (
	"errors"
	"fmt"
	"time"
)

var errInvalidBlock = errors.New("analysis: invalid audio block")

// AudioBlock is one fixed-duration run of interleaved samples. It is not
// modified after it has been produced.
type AudioBlock struct {
	// Source identifies the origin, a file path or a session ID.
	Source string
	// Index is the block's position within Source, starting at 0.
	Index      int
	Samples    []float64
	SampleRate float64
	Channels   int
	Timestamp  time.Time
	// Duration is the nominal block length. The final block of a bounded
	// recording may hold fewer samples.
	Duration time.Duration
}

// Frames returns the number of sample frames (samples per channel).
func (b *AudioBlock) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// ActualDuration returns the duration covered by the samples held.
func (b *AudioBlock) ActualDuration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / b.SampleRate * float64(time.Second))
}

// Validate checks the block shape.
func (b *AudioBlock) Validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil", errInvalidBlock)
	case b.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %v", errInvalidBlock, b.SampleRate)
	case b.Channels <= 0:
		return fmt.Errorf("%w: channels %d", errInvalidBlock, b.Channels)
	case len(b.Samples) == 0:
		return fmt.Errorf("%w: no samples", errInvalidBlock)
	case len(b.Samples)%b.Channels != 0:
		return fmt.Errorf("%w: %d samples not divisible by %d channels", errInvalidBlock, len(b.Samples), b.Channels)
	}
	return nil
}

// channelInto copies channel c into dst, which must hold Frames() samples.
func (b *AudioBlock) channelInto(dst []float64, c int) {
	for f := range dst {
		dst[f] = b.Samples[f*b.Channels+c]
	}
}

// downmixInto writes the per-frame channel mean into dst.
func (b *AudioBlock) downmixInto(dst []float64) {
	if b.Channels == 1 {
		copy(dst, b.Samples)
		return
	}
	inv := 1 / float64(b.Channels)
	for f := range dst {
		sum := 0.0
		for _, v := range b.Samples[f*b.Channels : (f+1)*b.Channels] {
			sum += v
		}
		dst[f] = sum * inv
	}
}
