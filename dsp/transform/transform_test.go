package transform

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/lfnwatch/internal/cpu"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/internal/testutil"
)

const fallbackMsg = "acceleration disabled, using reference backend"

func TestBackendsAgree(t *testing.T) {
	for _, size := range []int{64, 1024, 4096} {
		src := testutil.Mix(
			testutil.DeterministicSine(50, 48000, 0.5, size),
			testutil.DeterministicNoise(int64(size), 0.1, size),
		)
		acc, err := newAlgoFFTBackend(size)
		if err != nil {
			t.Fatalf("algofft size %d: %v", size, err)
		}
		ref, err := newGonumBackend(size)
		if err != nil {
			t.Fatalf("gonum size %d: %v", size, err)
		}
		alt, err := newGoDSPBackend(size)
		if err != nil {
			t.Fatalf("godsp size %d: %v", size, err)
		}
		a := make([]complex128, size/2+1)
		r := make([]complex128, size/2+1)
		g := make([]complex128, size/2+1)
		if err := acc.Forward(a, src); err != nil {
			t.Fatalf("algofft forward: %v", err)
		}
		if err := ref.Forward(r, src); err != nil {
			t.Fatalf("gonum forward: %v", err)
		}
		if err := alt.Forward(g, src); err != nil {
			t.Fatalf("godsp forward: %v", err)
		}
		for k := range a {
			if d := cmplx.Abs(a[k] - r[k]); d > 1e-9*float64(size) {
				t.Fatalf("size %d bin %d: algofft diff %g", size, k, d)
			}
			if d := cmplx.Abs(g[k] - r[k]); d > 1e-9*float64(size) {
				t.Fatalf("size %d bin %d: godsp diff %g", size, k, d)
			}
		}
	}
}

func TestBackendLengthCheck(t *testing.T) {
	b, err := newGonumBackend(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Forward(make([]complex128, 4), make([]float64, 8)); !errors.Is(err, errLength) {
		t.Fatalf("expected length error, got %v", err)
	}
	if _, err := newAlgoFFTBackend(1); !errors.Is(err, errInvalidSize) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	feats := cpu.Features{HasSSE2: true, HasNEON: true, Architecture: "test"}

	e, err := Global.Lookup(feats, true)
	if err != nil || e.Name != NameAlgoFFT {
		t.Fatalf("accelerated lookup = %q, %v", e.Name, err)
	}
	e, err = Global.Lookup(feats, false)
	if err != nil || e.Name != NameGonum {
		t.Fatalf("reference lookup = %q, %v", e.Name, err)
	}

	generic := cpu.Features{ForceGeneric: true, Architecture: "test"}
	if e, err := Global.Lookup(generic, false); err != nil || e.Name != NameGonum {
		t.Fatalf("generic reference lookup = %q, %v", e.Name, err)
	}
}

func TestRegistryReplaceAndOrder(t *testing.T) {
	r := &Registry{}
	r.Register(Entry{Name: "low", Priority: 1, New: newGonumBackend})
	r.Register(Entry{Name: "high", Priority: 5, New: newGonumBackend})
	r.Register(Entry{Name: "low", Priority: 9, New: newGonumBackend})

	got := r.Entries()
	if len(got) != 2 || got[0].Name != "low" || got[1].Name != "high" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

// flakyBackend fails after ok successful calls.
type flakyBackend struct {
	size   int
	ok     int
	calls  int
	closed bool
	panics bool
}

func (f *flakyBackend) Name() string { return "flaky" }
func (f *flakyBackend) Size() int    { return f.size }

func (f *flakyBackend) Forward(dst []complex128, src []float64) error {
	f.calls++
	if f.calls > f.ok {
		if f.panics {
			panic("kernel fault")
		}
		return errors.New("device lost")
	}
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func (f *flakyBackend) Close() error {
	f.closed = true
	return nil
}

func testRegistry(newAcc func(int) (Backend, error)) *Registry {
	r := &Registry{}
	r.Register(Entry{Name: NameGonum, New: newGonumBackend})
	r.Register(Entry{Name: "flaky", Priority: 10, Accelerated: true, New: newAcc})
	return r
}

func TestDispatcherInitFailureFallsBackOnce(t *testing.T) {
	rec := logging.NewRecorder()
	reg := testRegistry(func(int) (Backend, error) { return nil, errors.New("no device") })

	d, err := NewDispatcher(256, WithRegistry(reg), WithLogger(rec))
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	defer d.Close()

	src := testutil.DeterministicSine(1000, 48000, 1, 256)
	dst := make([]complex128, 129)
	for i := 0; i < 20; i++ {
		if err := d.Forward(dst, src); err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		if d.Backend() != NameGonum {
			t.Fatalf("block %d ran on %q", i, d.Backend())
		}
	}

	fell, cause := d.FellBack()
	if !fell || !errors.Is(cause, ErrAccelerationInit) {
		t.Fatalf("FellBack = %v, %v", fell, cause)
	}
	if n := rec.Count(logging.WarnLevel, fallbackMsg); n != 1 {
		t.Fatalf("fallback logged %d times, want 1", n)
	}
}

func TestDispatcherRuntimeFailureIsSticky(t *testing.T) {
	for _, panics := range []bool{false, true} {
		rec := logging.NewRecorder()
		flaky := &flakyBackend{size: 128, ok: 3, panics: panics}
		reg := testRegistry(func(int) (Backend, error) { return flaky, nil })

		d, err := NewDispatcher(128, WithRegistry(reg), WithLogger(rec))
		if err != nil {
			t.Fatal(err)
		}
		if d.Backend() != "flaky" {
			t.Fatalf("initial backend %q", d.Backend())
		}

		src := testutil.DeterministicSine(3000, 48000, 1, 128)
		dst := make([]complex128, 65)
		for i := 0; i < 10; i++ {
			if err := d.Forward(dst, src); err != nil {
				t.Fatalf("block %d: %v", i, err)
			}
		}
		// The failing block was recomputed on the reference backend.
		if cmplx.Abs(dst[8]) < 1 {
			t.Fatalf("expected tone energy at bin 8, got %v", dst[8])
		}
		if flaky.calls != 4 {
			t.Fatalf("accelerated backend called %d times after failure", flaky.calls)
		}
		if !flaky.closed {
			t.Fatal("failed backend was not closed")
		}
		_, cause := d.FellBack()
		if !errors.Is(cause, ErrAccelerationRuntime) {
			t.Fatalf("cause = %v", cause)
		}
		if n := rec.Count(logging.WarnLevel, fallbackMsg); n != 1 {
			t.Fatalf("fallback logged %d times, want 1", n)
		}
		if err := d.Close(); err != nil {
			t.Fatal(err)
		}
		if err := d.Forward(dst, src); err == nil {
			t.Fatal("Forward after Close succeeded")
		}
	}
}

func TestDispatcherAccelerationDisabled(t *testing.T) {
	rec := logging.NewRecorder()
	d, err := NewDispatcher(64, WithAcceleration(false), WithLogger(rec))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.Backend() != NameGonum {
		t.Fatalf("backend %q", d.Backend())
	}
	if fell, _ := d.FellBack(); fell {
		t.Fatal("disabled acceleration must not count as fallback")
	}
	if len(rec.Entries()) != 0 {
		t.Fatalf("unexpected log entries: %+v", rec.Entries())
	}
}

func TestDispatcherNamedReference(t *testing.T) {
	d, err := NewDispatcher(64, WithAcceleration(false), WithReferenceBackend(NameGoDSP))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.Backend() != NameGoDSP {
		t.Fatalf("backend %q", d.Backend())
	}
	if _, err := NewDispatcher(64, WithReferenceBackend(NameAlgoFFT)); err == nil {
		t.Fatal("accelerated backend accepted as reference")
	}
}

func TestDispatcherGenericCPU(t *testing.T) {
	rec := logging.NewRecorder()
	d, err := NewDispatcher(64,
		WithFeatures(cpu.Features{ForceGeneric: true, Architecture: "test"}),
		WithLogger(rec))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.Backend() != NameGonum {
		t.Fatalf("backend %q", d.Backend())
	}
	if rec.Count(logging.WarnLevel, fallbackMsg) != 1 {
		t.Fatal("expected one fallback entry")
	}
}
