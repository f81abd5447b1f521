package cpu

import (
	"runtime"
	"testing"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		name     string
		features Features
		level    SIMDLevel
		want     bool
	}{
		{"none always", Features{}, SIMDNone, true},
		{"sse2 present", Features{HasSSE2: true}, SIMDSSE2, true},
		{"avx2 missing", Features{HasSSE2: true}, SIMDAVX2, false},
		{"neon present", Features{HasNEON: true}, SIMDNEON, true},
		{"forced generic blocks sse2", Features{HasSSE2: true, ForceGeneric: true}, SIMDSSE2, false},
		{"forced generic keeps none", Features{ForceGeneric: true}, SIMDNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Supports(tt.features, tt.level); got != tt.want {
				t.Fatalf("Supports(%+v, %s)=%v want %v", tt.features, tt.level, got, tt.want)
			}
		})
	}
}

func TestForcedFeatures(t *testing.T) {
	t.Cleanup(ResetForcedFeatures)

	SetForcedFeatures(Features{ForceGeneric: true, Architecture: "test"})
	got := DetectFeatures()
	if !got.ForceGeneric || got.Architecture != "test" {
		t.Fatalf("forced features not returned: %+v", got)
	}
	if BestLevel(got) != SIMDNone {
		t.Fatalf("BestLevel=%s want none", BestLevel(got))
	}

	ResetForcedFeatures()
	if DetectFeatures().ForceGeneric {
		t.Fatal("ResetForcedFeatures did not restore detection")
	}
}

func TestDetectMatchesArchitecture(t *testing.T) {
	f := detect()
	if f.Architecture != runtime.GOARCH {
		t.Fatalf("Architecture = %q", f.Architecture)
	}
	if (f.HasSSE2 || f.HasAVX2) && runtime.GOARCH != "amd64" && runtime.GOARCH != "386" {
		t.Fatalf("x86 flags on %s: %+v", runtime.GOARCH, f)
	}
	if f.HasNEON && runtime.GOARCH != "arm64" {
		t.Fatalf("NEON on %s", runtime.GOARCH)
	}
	if runtime.GOARCH == "amd64" && !f.HasSSE2 {
		t.Fatal("amd64 without SSE2")
	}
}
