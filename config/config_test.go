package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default invalid: %v", err)
	}
	if c.BlockFrames() != 240000 || c.BlocksPerSegment() != 360 {
		t.Fatalf("frames=%d blocks/segment=%d", c.BlockFrames(), c.BlocksPerSegment())
	}
	th := c.Thresholds()
	if th[peaks.LFN] != 45 || th[peaks.Ultrasonic] != 50 {
		t.Fatalf("thresholds = %v", th)
	}
	if c.AlertCooldown != 0 {
		t.Fatal("cooldown must default to zero")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"sample rate", WithSampleRate(100), "sample rate"},
		{"channels", WithChannels(0), "channel count"},
		{"block", WithBlockDuration(0), "block duration"},
		{"segment shorter", WithSegmentDuration(time.Second), "shorter than block"},
		{"segment multiple", WithSegmentDuration(12 * time.Second), "not a multiple"},
		{"total", WithTotalDuration(-time.Second), "total duration"},
		{"frame", WithFrameSize(1000), "frame size"},
		{"device", WithDevice("   "), "device selector"},
		{"cooldown", WithAlertCooldown(-time.Second), "alert cooldown"},
		{"drop policy", func(c *Config) { c.DropPolicy = "block" }, "drop policy"},
		{"queue", func(c *Config) { c.QueueCapacity = 0 }, "queue capacity"},
		{"band", func(c *Config) { c.LFNBand.HighHz = 10 }, "band range"},
		{"peaks", func(c *Config) { c.MaxPeaks = 11 }, "max peaks"},
		{"highpass", func(c *Config) { c.HighPassHz = 30000 }, "high-pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			if !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("err = %v, want ErrConfigInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestUltrasonicAboveNyquistIsAllowed(t *testing.T) {
	if _, err := New(WithSampleRate(32000)); err != nil {
		t.Fatalf("ultrasonic band above Nyquist must not be an error: %v", err)
	}
}

func TestExpectedSegments(t *testing.T) {
	tests := []struct {
		total, seg time.Duration
		want       int
	}{
		{0, time.Minute, 0},
		{time.Minute, time.Minute, 1},
		{61 * time.Second, time.Minute, 2},
		{150 * time.Minute, 30 * time.Minute, 5},
		{151 * time.Minute, 30 * time.Minute, 6},
	}
	for _, tt := range tests {
		c := Config{TotalDuration: tt.total, SegmentDuration: tt.seg}
		if got := c.ExpectedSegments(); got != tt.want {
			t.Fatalf("total=%v seg=%v: got %d want %d", tt.total, tt.seg, got, tt.want)
		}
	}
}

func TestOverlayEnv(t *testing.T) {
	env := map[string]string{
		"LFN_SAMPLE_RATE":             "44100",
		"LFN_CHANNELS":                "1",
		"LFN_BLOCK_DURATION":          "2s",
		"LFN_SEGMENT_DURATION":        "600",
		"LFN_THRESHOLD_LFN_DB":        "40.5",
		"LFN_ACCELERATION":            "false",
		"LFN_CHANNEL_POLICY":          "per-channel",
		"LFN_ALERT_COOLDOWN":          "30s",
		"LFN_MQTT_BROKER":             "tcp://broker:1883",
		"LFN_CLICKHOUSE_ADDR":         "ch:9000",
		"LFN_THRESHOLD_ULTRASONIC_DB": " ",
	}
	c := Default()
	err := c.overlayEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 44100 || c.Channels != 1 || c.BlockDuration != 2*time.Second ||
		c.SegmentDuration != 10*time.Minute || c.LFNThresholdDB != 40.5 || c.Acceleration ||
		c.ChannelPolicy != analysis.PerChannel || c.AlertCooldown != 30*time.Second {
		t.Fatalf("overlay not applied: %+v", c)
	}
	if c.UltrasonicThresholdDB != 50 {
		t.Fatal("blank variable must keep the default")
	}
	if !c.MQTT.Enabled() || !c.ClickHouse.Enabled() {
		t.Fatal("sink sections not enabled")
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestOverlayEnvParseErrors(t *testing.T) {
	c := Default()
	err := c.overlayEnv(func(k string) (string, bool) {
		switch k {
		case "LFN_CHANNELS":
			return "two", true
		case "LFN_DRAIN_TIMEOUT":
			return "soon", true
		}
		return "", false
	})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "LFN_CHANNELS") || !strings.Contains(err.Error(), "LFN_DRAIN_TIMEOUT") {
		t.Fatalf("err does not name both variables: %v", err)
	}
}

func TestFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("LFN_FRAME_SIZE=4096\nLFN_OUTPUT_DIR=/tmp/rec\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LFN_FRAME_SIZE", "")
	t.Setenv("LFN_OUTPUT_DIR", "")
	os.Unsetenv("LFN_FRAME_SIZE")
	os.Unsetenv("LFN_OUTPUT_DIR")

	c, err := FromEnv(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if c.FrameSize != 4096 || c.OutputDir != "/tmp/rec" {
		t.Fatalf("file not applied: frame=%d dir=%q", c.FrameSize, c.OutputDir)
	}
}
