// Package cpu reports the SIMD capabilities that decide whether the
// accelerated transform backend may be selected.
//
// Detection runs once per process and is cached. Tests can pin a feature set
// with SetForcedFeatures to exercise the reference path on any machine.
package cpu

import (
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// SIMDLevel is the instruction-set tier a backend requires.
type SIMDLevel int

const (
	// SIMDNone runs anywhere (pure Go).
	SIMDNone SIMDLevel = iota
	// SIMDSSE2 is the x86-64 baseline.
	SIMDSSE2
	// SIMDAVX2 is x86-64 AVX2.
	SIMDAVX2
	// SIMDNEON is ARM Advanced SIMD.
	SIMDNEON
)

func (s SIMDLevel) String() string {
	switch s {
	case SIMDNone:
		return "none"
	case SIMDSSE2:
		return "sse2"
	case SIMDAVX2:
		return "avx2"
	case SIMDNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Features describes what the current CPU offers.
type Features struct {
	HasSSE2 bool
	HasAVX2 bool
	HasNEON bool

	// ForceGeneric disables every SIMD tier.
	ForceGeneric bool

	Architecture string
}

var (
	detectOnce sync.Once
	detected   Features

	forcedMu sync.RWMutex
	forced   *Features
)

// DetectFeatures returns the cached feature set, or the forced one if set.
func DetectFeatures() Features {
	forcedMu.RLock()
	f := forced
	forcedMu.RUnlock()
	if f != nil {
		return *f
	}

	detectOnce.Do(func() {
		detected = detect()
	})
	return detected
}

// detect reads x/sys/cpu, which fills in only the running architecture's
// flags, so one probe serves every GOARCH.
func detect() Features {
	return Features{
		HasSSE2:      cpu.X86.HasSSE2,
		HasAVX2:      cpu.X86.HasAVX2,
		HasNEON:      cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
	}
}

// SetForcedFeatures overrides detection. Testing only.
func SetForcedFeatures(f Features) {
	forcedMu.Lock()
	defer forcedMu.Unlock()
	forced = &f
}

// ResetForcedFeatures restores hardware detection.
func ResetForcedFeatures() {
	forcedMu.Lock()
	defer forcedMu.Unlock()
	forced = nil
}

// Supports reports whether features satisfy level.
func Supports(features Features, level SIMDLevel) bool {
	if features.ForceGeneric {
		return level == SIMDNone
	}

	switch level {
	case SIMDNone:
		return true
	case SIMDSSE2:
		return features.HasSSE2
	case SIMDAVX2:
		return features.HasAVX2
	case SIMDNEON:
		return features.HasNEON
	default:
		return false
	}
}

// BestLevel returns the highest tier available for features.
func BestLevel(features Features) SIMDLevel {
	switch {
	case features.ForceGeneric:
		return SIMDNone
	case features.HasAVX2:
		return SIMDAVX2
	case features.HasSSE2:
		return SIMDSSE2
	case features.HasNEON:
		return SIMDNEON
	default:
		return SIMDNone
	}
}
