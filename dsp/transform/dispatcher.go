package transform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/lfnwatch/internal/cpu"
	"github.com/cwbudde/lfnwatch/internal/logging"
)

// Option configures a Dispatcher.
type Option func(*dispatcherConfig)

type dispatcherConfig struct {
	accelerate bool
	registry   *Registry
	features   *cpu.Features
	reference  string
	logger     logging.Logger
}

// WithAcceleration enables or disables the accelerated backend. Default on.
func WithAcceleration(enabled bool) Option {
	return func(c *dispatcherConfig) { c.accelerate = enabled }
}

// WithRegistry selects backends from r instead of Global.
func WithRegistry(r *Registry) Option {
	return func(c *dispatcherConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithReferenceBackend selects the reference backend by name instead of by
// priority. The entry must not be accelerated.
func WithReferenceBackend(name string) Option {
	return func(c *dispatcherConfig) { c.reference = name }
}

// WithFeatures overrides CPU detection.
func WithFeatures(f cpu.Features) Option {
	return func(c *dispatcherConfig) { c.features = &f }
}

// WithLogger sets the logger used for fallback reporting.
func WithLogger(l logging.Logger) Option {
	return func(c *dispatcherConfig) { c.logger = l }
}

// Dispatcher owns the transform backends of one session.
//
// The active backend only ever moves from accelerated to reference. Once it
// has fallen back it never returns, and the failure is logged a single time.
type Dispatcher struct {
	mu        sync.Mutex
	size      int
	active    Backend
	reference Backend
	fellBack  bool
	cause     error
	closed    bool
	logger    logging.Logger
}

// NewDispatcher creates the backends for frames of size samples.
//
// The reference backend must initialize; its failure is returned. A failing
// accelerated backend is not an error: the dispatcher starts on the reference
// backend and records the fallback.
func NewDispatcher(size int, opts ...Option) (*Dispatcher, error) {
	cfg := dispatcherConfig{accelerate: true, registry: Global}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	features := cpu.DetectFeatures()
	if cfg.features != nil {
		features = *cfg.features
	}

	d := &Dispatcher{
		size:   size,
		logger: logging.OrGlobal(cfg.logger).WithFields(logging.Fields{"component": "transform"}),
	}

	refEntry, err := lookupReference(cfg, features)
	if err != nil {
		return nil, err
	}
	ref, err := refEntry.New(size)
	if err != nil {
		return nil, fmt.Errorf("transform: reference backend %q: %w", refEntry.Name, err)
	}
	d.reference = ref
	d.active = ref

	if !cfg.accelerate {
		return d, nil
	}

	accEntry, err := cfg.registry.Lookup(features, true)
	if err != nil {
		d.fallback(fmt.Errorf("%w: %w", ErrAccelerationInit, err))
		return d, nil
	}
	acc, err := newSafely(accEntry, size)
	if err != nil {
		d.fallback(fmt.Errorf("%w: %s: %w", ErrAccelerationInit, accEntry.Name, err))
		return d, nil
	}
	d.active = acc
	d.logger.Debug("accelerated backend selected", logging.Fields{
		"backend": acc.Name(), "size": size, "level": accEntry.Level.String(),
	})
	return d, nil
}

func lookupReference(cfg dispatcherConfig, features cpu.Features) (Entry, error) {
	if cfg.reference == "" {
		return cfg.registry.Lookup(features, false)
	}
	e, ok := cfg.registry.Get(cfg.reference)
	if !ok || e.Accelerated || e.New == nil {
		return Entry{}, fmt.Errorf("transform: unknown reference backend %q", cfg.reference)
	}
	return e, nil
}

func newSafely(e Entry, size int) (b Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.New(size)
}

// Forward transforms src into dst on the active backend. A runtime failure of
// the accelerated backend switches to the reference backend and recomputes
// the same frame there, so callers only see reference errors.
func (d *Dispatcher) Forward(dst []complex128, src []float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("transform: dispatcher closed")
	}
	if d.active != d.reference {
		err := forwardSafely(d.active, dst, src)
		if err == nil {
			return nil
		}
		if errors.Is(err, errLength) {
			return err
		}
		d.fallback(fmt.Errorf("%w: %s: %w", ErrAccelerationRuntime, d.active.Name(), err))
	}
	return d.reference.Forward(dst, src)
}

func forwardSafely(b Backend, dst []complex128, src []float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Forward(dst, src)
}

// fallback must be called with d.mu held or during construction.
func (d *Dispatcher) fallback(cause error) {
	if d.fellBack {
		return
	}
	d.fellBack = true
	d.cause = cause
	if d.active != d.reference && d.active != nil {
		_ = d.active.Close()
	}
	d.active = d.reference
	d.logger.Warn("acceleration disabled, using reference backend", logging.Fields{
		"backend": d.reference.Name(),
		"cause":   cause.Error(),
	})
}

// Size returns the frame length the backends were built for.
func (d *Dispatcher) Size() int { return d.size }

// Backend returns the name of the backend currently in use.
func (d *Dispatcher) Backend() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active.Name()
}

// FellBack reports whether the dispatcher has switched to the reference
// backend, and why.
func (d *Dispatcher) FellBack() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fellBack, d.cause
}

// Close releases all backend resources. It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	if d.active != d.reference {
		errs = append(errs, d.active.Close())
	}
	errs = append(errs, d.reference.Close())
	return errors.Join(errs...)
}
