package transform

import (
	"errors"
	"fmt"
	"runtime"

	algofft "github.com/MeKo-Christian/algo-fft"
	godspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwbudde/lfnwatch/internal/cpu"
)

var (
	// ErrAccelerationInit reports that an accelerated backend could not be created.
	ErrAccelerationInit = errors.New("transform: accelerated backend init failed")
	// ErrAccelerationRuntime reports that an accelerated backend failed on a block.
	ErrAccelerationRuntime = errors.New("transform: accelerated backend failed at runtime")

	errInvalidSize = errors.New("transform: size must be >= 2")
	errLength      = errors.New("transform: buffer length mismatch")
)

// Backend computes the forward transform of a real frame.
//
// Forward writes Size()/2+1 unnormalized bins into dst from len(src)==Size()
// samples. Implementations are not safe for concurrent use.
type Backend interface {
	Name() string
	Size() int
	Forward(dst []complex128, src []float64) error
	Close() error
}

// Backend names registered by this package.
const (
	NameAlgoFFT = "algofft"
	NameGonum   = "gonum"
	NameGoDSP   = "godsp"
)

func init() {
	Global.Register(Entry{
		Name:        NameAlgoFFT,
		Level:       nativeLevel(),
		Priority:    20,
		Accelerated: true,
		New:         newAlgoFFTBackend,
	})
	Global.Register(Entry{
		Name:     NameGonum,
		Level:    cpu.SIMDNone,
		Priority: 0,
		New:      newGonumBackend,
	})
	Global.Register(Entry{
		Name:     NameGoDSP,
		Level:    cpu.SIMDNone,
		Priority: -10,
		New:      newGoDSPBackend,
	})
}

// nativeLevel is the baseline SIMD tier the algo-fft kernels target on this
// architecture.
func nativeLevel() cpu.SIMDLevel {
	switch runtime.GOARCH {
	case "amd64":
		return cpu.SIMDSSE2
	case "arm64":
		return cpu.SIMDNEON
	default:
		return cpu.SIMDNone
	}
}

func checkLengths(size int, dst []complex128, src []float64) error {
	if len(src) != size || len(dst) != size/2+1 {
		return fmt.Errorf("%w: src=%d dst=%d size=%d", errLength, len(src), len(dst), size)
	}
	return nil
}

// algoFFTBackend runs a complex plan from algo-fft over the zero-imaginary
// input and keeps the non-negative half of the spectrum.
type algoFFTBackend struct {
	size int
	plan *algofft.Plan[complex128]
	in   []complex128
	out  []complex128
}

func newAlgoFFTBackend(size int) (Backend, error) {
	if size < 2 {
		return nil, errInvalidSize
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("transform: algofft plan %d: %w", size, err)
	}
	return &algoFFTBackend{
		size: size,
		plan: plan,
		in:   make([]complex128, size),
		out:  make([]complex128, size),
	}, nil
}

func (b *algoFFTBackend) Name() string { return NameAlgoFFT }

func (b *algoFFTBackend) Size() int { return b.size }

func (b *algoFFTBackend) Forward(dst []complex128, src []float64) error {
	if b.plan == nil {
		return errors.New("transform: algofft backend closed")
	}
	if err := checkLengths(b.size, dst, src); err != nil {
		return err
	}
	for i, v := range src {
		b.in[i] = complex(v, 0)
	}
	if err := b.plan.Forward(b.out, b.in); err != nil {
		return err
	}
	copy(dst, b.out[:len(dst)])
	return nil
}

func (b *algoFFTBackend) Close() error {
	b.plan = nil
	b.in = nil
	b.out = nil
	return nil
}

// gonumBackend is the pure Go reference implementation.
type gonumBackend struct {
	size int
	fft  *fourier.FFT
}

func newGonumBackend(size int) (Backend, error) {
	if size < 2 {
		return nil, errInvalidSize
	}
	return &gonumBackend{size: size, fft: fourier.NewFFT(size)}, nil
}

func (b *gonumBackend) Name() string { return NameGonum }

func (b *gonumBackend) Size() int { return b.size }

func (b *gonumBackend) Forward(dst []complex128, src []float64) error {
	if err := checkLengths(b.size, dst, src); err != nil {
		return err
	}
	b.fft.Coefficients(dst, src)
	return nil
}

func (b *gonumBackend) Close() error { return nil }

// goDSPBackend is an alternative reference implementation. It allocates per
// call and is only selected by name.
type goDSPBackend struct {
	size int
}

func newGoDSPBackend(size int) (Backend, error) {
	if size < 2 {
		return nil, errInvalidSize
	}
	return &goDSPBackend{size: size}, nil
}

func (b *goDSPBackend) Name() string { return NameGoDSP }

func (b *goDSPBackend) Size() int { return b.size }

func (b *goDSPBackend) Forward(dst []complex128, src []float64) error {
	if err := checkLengths(b.size, dst, src); err != nil {
		return err
	}
	copy(dst, godspfft.FFTReal(src))
	return nil
}

func (b *goDSPBackend) Close() error { return nil }
