package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/lfnwatch/batch"
	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/internal/cpu"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/level"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

func TestRenderReport(t *testing.T) {
	rep := batch.FileReport{
		Path:       "night.wav",
		SampleRate: 48000,
		Channels:   2,
		Duration:   90 * time.Second,
		Blocks:     18,
		Max: []batch.BandMax{
			{Band: peaks.LFN, Peak: peaks.Record{FrequencyHz: 48.8, LevelDB: 61.2}, Found: true},
			{Band: peaks.Ultrasonic},
		},
		Alerts: []alert.Event{{Band: peaks.LFN}},
		Level:  level.Summary{Weighted: true, LAeqDB: 35.5, LCeqDB: 58},
	}
	out := RenderReport(rep)
	for _, want := range []string{"night.wav", "48000 Hz, 2 ch", "61.2 dB at 48.8 Hz", "ALERT", "none in band", "C-A 22.5 dB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report lacks %q:\n%s", want, out)
		}
	}

	rep = batch.FileReport{Path: "bad.mp3", Err: errors.New("ffmpeg: exit status 1")}
	if out := RenderReport(rep); !strings.Contains(out, "exit status 1") {
		t.Fatalf("error report:\n%s", out)
	}
}

func TestRenderSummary(t *testing.T) {
	s := capture.Summary{
		SessionID:         "abc",
		State:             capture.StateFailed,
		BlocksAnalyzed:    12,
		FinalizedSegments: 2,
		FailedSegments:    1,
		Backend:           "gonum",
		Fallback:          true,
		Err:               capture.ErrStreamInterrupted,
	}
	out := RenderSummary(s)
	for _, want := range []string{"Session abc", "FAILED", "2 finalized, 1 failed", "gonum (fallback)", "stream interrupted"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary lacks %q:\n%s", want, out)
		}
	}
}

func TestRenderAlertAndBackends(t *testing.T) {
	line := RenderAlert(alert.Event{Band: peaks.Ultrasonic, LevelDB: 55, ThresholdDB: 50, FrequencyHz: 21000})
	if !strings.Contains(line, "ULTRASONIC ALERT") || !strings.Contains(line, "55.0 dB at 21000.0 Hz") {
		t.Fatalf("alert line %q", line)
	}

	out := RenderBackends([]transform.Entry{
		{Name: "fast", Level: cpu.SIMDAVX2, Accelerated: true},
		{Name: "plain", Level: cpu.SIMDNone},
	}, cpu.Features{Architecture: "amd64", HasSSE2: true})
	if !strings.Contains(out, "unsupported") || !strings.Contains(out, "available") {
		t.Fatalf("backends:\n%s", out)
	}
}
