package main

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/config"
)

func TestApplyOverridesOnlySetFlags(t *testing.T) {
	cfg := config.Default()
	lfn := 40.0
	g := Globals{Rate: 96000, Block: 2.5, NoAccel: true, LFNDB: &lfn, PerChan: true}
	g.apply(&cfg)

	if cfg.SampleRate != 96000 || cfg.BlockDuration != 2500*time.Millisecond {
		t.Fatalf("rate=%v block=%v", cfg.SampleRate, cfg.BlockDuration)
	}
	if cfg.Acceleration || cfg.LFNThresholdDB != 40 || cfg.ChannelPolicy != analysis.PerChannel {
		t.Fatalf("accel=%v lfn=%v policy=%v", cfg.Acceleration, cfg.LFNThresholdDB, cfg.ChannelPolicy)
	}
	def := config.Default()
	if cfg.Channels != def.Channels || cfg.FrameSize != def.FrameSize || cfg.UltrasonicThresholdDB != def.UltrasonicThresholdDB {
		t.Fatal("unset flags changed the config")
	}
}

func TestZeroThresholdFlags(t *testing.T) {
	tests := []struct {
		args    []string
		lfn, us float64
	}{
		{args: []string{"backends"}, lfn: 45, us: 50},
		{args: []string{"--lfn-db", "0", "backends"}, lfn: 0, us: 50},
		{args: []string{"--lfn-db=-20", "--us-db=0", "backends"}, lfn: -20, us: 0},
	}
	for _, tt := range tests {
		var c CLI
		parser, err := kong.New(&c, kong.Name("lfnwatch"), kong.Vars{"version": version})
		if err != nil {
			t.Fatalf("kong.New: %v", err)
		}
		if _, err := parser.Parse(tt.args); err != nil {
			t.Fatalf("Parse(%v): %v", tt.args, err)
		}
		cfg := config.Default()
		c.Globals.apply(&cfg)
		if cfg.LFNThresholdDB != tt.lfn || cfg.UltrasonicThresholdDB != tt.us {
			t.Fatalf("%v: lfn=%v us=%v, want %v and %v", tt.args, cfg.LFNThresholdDB, cfg.UltrasonicThresholdDB, tt.lfn, tt.us)
		}
	}
}
