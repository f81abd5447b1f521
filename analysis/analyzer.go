package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/lfnwatch/dsp/buffer"
	"github.com/cwbudde/lfnwatch/dsp/core"
	"github.com/cwbudde/lfnwatch/dsp/spectrum"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/dsp/window"
	"github.com/cwbudde/lfnwatch/internal/logging"
)

// DefaultReference is the amplitude mapped to 0 dB: 20 µPa, assuming a
// calibrated input where full scale corresponds to 1 Pa.
const DefaultReference = core.SPLReference

// ChannelPolicy decides how multichannel blocks are analyzed.
type ChannelPolicy int

const (
	// Downmix analyzes the mean of all channels.
	Downmix ChannelPolicy = iota
	// PerChannel analyzes each channel separately.
	PerChannel
)

func (p ChannelPolicy) String() string {
	switch p {
	case Downmix:
		return "downmix"
	case PerChannel:
		return "per-channel"
	default:
		return fmt.Sprintf("ChannelPolicy(%d)", int(p))
	}
}

// ParseChannelPolicy converts "downmix" or "per-channel".
func ParseChannelPolicy(s string) (ChannelPolicy, error) {
	switch s {
	case "downmix", "mix", "":
		return Downmix, nil
	case "per-channel", "perchannel", "channels":
		return PerChannel, nil
	default:
		return 0, fmt.Errorf("analysis: unknown channel policy %q", s)
	}
}

var errFrameSize = errors.New("analysis: frame size must be a power of two >= 64")

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHop sets the distance between successive frames. Default is half a frame.
func WithHop(hop int) Option {
	return func(a *Analyzer) { a.hop = hop }
}

// WithWindow selects the analysis window. Default is Hann.
func WithWindow(t window.Type) Option {
	return func(a *Analyzer) { a.windowType = t }
}

// WithReference sets the amplitude that maps to 0 dB.
func WithReference(ref float64) Option {
	return func(a *Analyzer) { a.reference = ref }
}

// WithFloor sets the lowest reported level.
func WithFloor(floorDB float64) Option {
	return func(a *Analyzer) { a.floorDB = floorDB }
}

// WithChannelPolicy selects downmix or per-channel analysis.
func WithChannelPolicy(p ChannelPolicy) Option {
	return func(a *Analyzer) { a.policy = p }
}

// WithNormalize scales each analyzed signal to unit peak before the transform.
func WithNormalize(enabled bool) Option {
	return func(a *Analyzer) { a.normalize = enabled }
}

// WithDispatcher shares an existing dispatcher. Its size must equal the frame
// size. The analyzer does not close it.
func WithDispatcher(d *transform.Dispatcher) Option {
	return func(a *Analyzer) { a.dispatcher = d }
}

// WithTransformOptions configures the dispatcher the analyzer creates when
// none is shared.
func WithTransformOptions(opts ...transform.Option) Option {
	return func(a *Analyzer) { a.transformOpts = append(a.transformOpts, opts...) }
}

// WithLogger sets the analyzer logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// Analyzer computes level spectra. It is not safe for concurrent use; a
// capture session owns exactly one.
type Analyzer struct {
	size          int
	hop           int
	windowType    window.Type
	reference     float64
	floorDB       float64
	policy        ChannelPolicy
	normalize     bool
	dispatcher    *transform.Dispatcher
	ownDispatcher bool
	transformOpts []transform.Option
	logger        logging.Logger

	coeffs   []float64
	leveler  *spectrum.Leveler
	frame    []float64
	windowed []float64
	bins     []complex128
	mono     *buffer.Buffer
}

// NewAnalyzer builds an analyzer for frames of frameSize samples.
func NewAnalyzer(frameSize int, opts ...Option) (*Analyzer, error) {
	if frameSize < 64 || !core.IsPowerOfTwo(frameSize) {
		return nil, fmt.Errorf("%w: %d", errFrameSize, frameSize)
	}
	a := &Analyzer{
		size:       frameSize,
		hop:        frameSize / 2,
		windowType: window.TypeHann,
		reference:  DefaultReference,
		floorDB:    core.DefaultFloorDB,
	}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if a.hop <= 0 || a.hop > frameSize {
		return nil, fmt.Errorf("analysis: hop %d outside 1..%d", a.hop, frameSize)
	}
	if a.reference <= 0 || math.IsNaN(a.reference) || math.IsInf(a.reference, 0) {
		return nil, fmt.Errorf("analysis: reference must be > 0: %v", a.reference)
	}
	a.logger = logging.OrGlobal(a.logger).WithFields(logging.Fields{"component": "analysis"})

	coeffs, err := window.Generate(a.windowType, frameSize, window.WithPeriodic())
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	a.coeffs = coeffs

	// Amplitude correction: a full-scale sinusoid reads its peak amplitude.
	a.leveler = spectrum.NewLeveler(spectrum.AmplitudeScale(frameSize, window.Sum(coeffs)), a.reference, a.floorDB)

	if a.dispatcher == nil {
		d, err := transform.NewDispatcher(frameSize, append([]transform.Option{transform.WithLogger(a.logger)}, a.transformOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
		a.dispatcher = d
		a.ownDispatcher = true
	} else if a.dispatcher.Size() != frameSize {
		return nil, fmt.Errorf("analysis: dispatcher size %d != frame size %d", a.dispatcher.Size(), frameSize)
	}

	a.frame = make([]float64, frameSize)
	a.windowed = make([]float64, frameSize)
	a.bins = make([]complex128, a.leveler.Bins())
	a.mono = buffer.New(0, 1)
	return a, nil
}

// FrameSize returns the analysis frame length.
func (a *Analyzer) FrameSize() int { return a.size }

// Hop returns the frame advance.
func (a *Analyzer) Hop() int { return a.hop }

// Reference returns the amplitude that maps to 0 dB.
func (a *Analyzer) Reference() float64 { return a.reference }

// FloorDB returns the level floor.
func (a *Analyzer) FloorDB() float64 { return a.floorDB }

// Policy returns the channel policy.
func (a *Analyzer) Policy() ChannelPolicy { return a.policy }

// Dispatcher returns the transform dispatcher in use.
func (a *Analyzer) Dispatcher() *transform.Dispatcher { return a.dispatcher }

// Analyze returns every frame of block in channel order, then offset order.
//
// Frames start every Hop samples. When the block length is not a whole number
// of hops, one extra frame aligned to the end covers the tail. A block shorter
// than one frame is zero-padded to a single frame; this is logged at debug
// level.
func (a *Analyzer) Analyze(block *AudioBlock) ([]SpectralFrame, error) {
	if err := block.Validate(); err != nil {
		return nil, err
	}

	n := block.Frames()
	a.mono.SetFrames(n)
	sig := a.mono.Samples()

	channels := []int{Downmixed}
	if a.policy == PerChannel {
		channels = channels[:0]
		for c := 0; c < block.Channels; c++ {
			channels = append(channels, c)
		}
	}

	if n < a.size {
		a.logger.Debug("block shorter than frame, zero-padded", logging.Fields{
			"source": block.Source, "block": block.Index, "samples": n, "frame": a.size,
		})
	}

	offsets := a.offsets(n)
	out := make([]SpectralFrame, 0, len(channels)*len(offsets))
	for _, ch := range channels {
		if ch == Downmixed {
			block.downmixInto(sig)
		} else {
			block.channelInto(sig, ch)
		}
		if a.normalize {
			if peak := floats.Norm(sig, math.Inf(1)); peak > 0 {
				floats.Scale(1/peak, sig)
			}
		}
		for _, off := range offsets {
			fr, err := a.frameAt(sig, off, block.SampleRate)
			if err != nil {
				return nil, err
			}
			fr.Channel = ch
			out = append(out, fr)
		}
	}
	return out, nil
}

// Spectra returns one max-hold frame per analyzed channel.
func (a *Analyzer) Spectra(block *AudioBlock) ([]SpectralFrame, error) {
	frames, err := a.Analyze(block)
	if err != nil {
		return nil, err
	}
	per := len(a.offsets(block.Frames()))
	out := make([]SpectralFrame, 0, len(frames)/per)
	for i := 0; i < len(frames); i += per {
		held, _ := MaxHold(frames[i : i+per])
		out = append(out, held)
	}
	return out, nil
}

func (a *Analyzer) offsets(n int) []int {
	if n <= a.size {
		return []int{0}
	}
	var offs []int
	last := 0
	for off := 0; off+a.size <= n; off += a.hop {
		offs = append(offs, off)
		last = off
	}
	if last+a.size < n {
		offs = append(offs, n-a.size)
	}
	return offs
}

func (a *Analyzer) frameAt(sig []float64, off int, sampleRate float64) (SpectralFrame, error) {
	m := copy(a.frame, sig[off:])
	padded := m < a.size
	if padded {
		clear(a.frame[m:])
	}
	if err := window.ApplyTo(a.windowed, a.frame, a.coeffs); err != nil {
		return SpectralFrame{}, fmt.Errorf("analysis: %w", err)
	}
	if err := a.dispatcher.Forward(a.bins, a.windowed); err != nil {
		return SpectralFrame{}, fmt.Errorf("analysis: transform: %w", err)
	}
	levels := make([]float64, len(a.bins))
	if err := a.leveler.LevelsInto(levels, a.bins); err != nil {
		return SpectralFrame{}, fmt.Errorf("analysis: %w", err)
	}
	return SpectralFrame{
		Levels:     levels,
		BinHz:      spectrum.Resolution(a.size, sampleRate),
		Offset:     off,
		Size:       a.size,
		SampleRate: sampleRate,
		Padded:     padded,
	}, nil
}

// Close releases the dispatcher if the analyzer created it.
func (a *Analyzer) Close() error {
	if a.ownDispatcher && a.dispatcher != nil {
		return a.dispatcher.Close()
	}
	return nil
}
