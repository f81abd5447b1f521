package main

import (
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/config"
)

// apply overlays the flags that were set.
func (g *Globals) apply(cfg *config.Config) {
	if g.Rate > 0 {
		cfg.SampleRate = g.Rate
	}
	if g.Channels > 0 {
		cfg.Channels = g.Channels
	}
	if g.Frame > 0 {
		cfg.FrameSize = g.Frame
	}
	if g.Block > 0 {
		cfg.BlockDuration = time.Duration(g.Block * float64(time.Second))
	}
	if g.NoAccel {
		cfg.Acceleration = false
	}
	if g.LFNDB != nil {
		cfg.LFNThresholdDB = *g.LFNDB
	}
	if g.USDB != nil {
		cfg.UltrasonicThresholdDB = *g.USDB
	}
	if g.PerChan {
		cfg.ChannelPolicy = analysis.PerChannel
	}
}
