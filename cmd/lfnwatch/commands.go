package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/lfnwatch/batch"
	"github.com/cwbudde/lfnwatch/capture"
	"github.com/cwbudde/lfnwatch/capture/portaudio"
	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/internal/cli"
	"github.com/cwbudde/lfnwatch/internal/cpu"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/pipeline"
	"github.com/cwbudde/lfnwatch/sink/clickhouse"
	"github.com/cwbudde/lfnwatch/sink/mqtt"
)

// AnalyzeCmd runs batch analysis.
type AnalyzeCmd struct {
	Paths     []string `arg:"" name:"path" help:"Files or directories" type:"path"`
	Normalize bool     `help:"Normalize every block before analysis"`
	FFmpeg    string   `name:"ffmpeg" help:"ffmpeg binary for non-WAV input" default:"ffmpeg"`
}

func (c *AnalyzeCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Normalize {
		cfg.Normalize = true
	}

	opts := []batch.Option{batch.WithFFmpeg(c.FFmpeg), batch.WithLogger(g.logger)}
	sinks, closeSinks, err := openSinks(ctx, cfg, g, "")
	if err != nil {
		return err
	}
	defer closeSinks()
	for _, s := range sinks.results {
		opts = append(opts, batch.WithResultSink(s))
	}
	for _, s := range sinks.alerts {
		opts = append(opts, batch.WithAlertSink(s))
	}

	a, err := batch.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.AnalyzePaths(ctx, c.Paths...)
	for _, r := range reports {
		cli.Fprint(os.Stdout, cli.RenderReport(r))
	}
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(reports))
	}
	return nil
}

// MonitorCmd watches a device without recording.
type MonitorCmd struct {
	Device   string        `short:"d" help:"Device name, index or empty for the default input"`
	Duration time.Duration `help:"Stop after this long (0 runs until interrupted)"`
	Cooldown time.Duration `help:"Suppress repeated alerts per band within this window"`
}

func (c *MonitorCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Device != "" {
		cfg.Device = c.Device
	}
	cfg.TotalDuration = c.Duration
	if c.Cooldown > 0 {
		cfg.AlertCooldown = c.Cooldown
	}
	cfg.OutputDir = ""
	return runSession(ctx, g, cfg)
}

// RecordCmd records rotating segments while monitoring.
type RecordCmd struct {
	Device   string        `short:"d" help:"Device name, index or empty for the default input"`
	Out      string        `short:"o" help:"Output directory" type:"path"`
	Duration time.Duration `help:"Total recording length (0 runs until interrupted)"`
	Segment  time.Duration `help:"Segment length"`
	HighPass float64       `name:"highpass" help:"High-pass corner for recorded audio in Hz (negative disables)"`
}

func (c *RecordCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Device != "" {
		cfg.Device = c.Device
	}
	if c.Out != "" {
		cfg.OutputDir = c.Out
	}
	if c.Duration > 0 {
		cfg.TotalDuration = c.Duration
	}
	if c.Segment > 0 {
		cfg.SegmentDuration = c.Segment
	}
	switch {
	case c.HighPass < 0:
		cfg.HighPassHz = 0
	case c.HighPass > 0:
		cfg.HighPassHz = c.HighPass
	}
	if cfg.OutputDir == "" {
		return errors.New("record: output directory required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if n := cfg.ExpectedSegments(); n > 0 {
		g.logger.Info("recording", logging.Fields{"total": cfg.TotalDuration.String(), "segments": n, "dir": cfg.OutputDir})
	}
	return runSession(ctx, g, cfg)
}

func runSession(ctx context.Context, g *Globals, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	id := uuid.NewString()
	sinks, closeSinks, err := openSinks(ctx, cfg, g, id)
	if err != nil {
		return err
	}
	defer closeSinks()

	opts := []capture.SessionOption{
		capture.WithID(id),
		capture.WithLogger(g.logger),
		capture.WithAlertSink(pipeline.AlertSinkFunc(func(_ context.Context, e alert.Event) error {
			cli.Fprint(os.Stdout, cli.RenderAlert(e))
			return nil
		})),
	}
	if g.Debug {
		opts = append(opts, capture.WithResultSink(pipeline.LogSink{Logger: g.logger}))
	}
	for _, s := range sinks.results {
		opts = append(opts, capture.WithResultSink(s))
	}
	for _, s := range sinks.alerts {
		opts = append(opts, capture.WithAlertSink(s))
	}
	for _, s := range sinks.segments {
		opts = append(opts, capture.WithSegmentSink(s))
	}

	sess, err := capture.NewSession(cfg, portaudio.New(cfg.Device), opts...)
	if err != nil {
		return err
	}
	sum, err := sess.Run(ctx)
	cli.Fprint(os.Stdout, cli.RenderSummary(sum))
	return err
}

type sinkSet struct {
	results  []pipeline.ResultSink
	alerts   []pipeline.AlertSink
	segments []capture.SegmentSink
}

// openSinks connects the optional ClickHouse and MQTT outputs.
func openSinks(ctx context.Context, cfg config.Config, g *Globals, session string) (sinkSet, func(), error) {
	var (
		set     sinkSet
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if cfg.ClickHouse.Enabled() {
		store, err := clickhouse.Open(ctx, cfg.ClickHouse, g.logger)
		if err != nil {
			return set, closeAll, err
		}
		store.Session = session
		closers = append(closers, func() { _ = store.Close() })
		set.results = append(set.results, store)
		set.alerts = append(set.alerts, store)
		set.segments = append(set.segments, store)
	}
	if cfg.MQTT.Enabled() {
		n, err := mqtt.Connect(cfg.MQTT, g.logger)
		if err != nil {
			closeAll()
			return set, func() {}, err
		}
		closers = append(closers, n.Close)
		set.alerts = append(set.alerts, n)
		set.segments = append(set.segments, n)
	}
	return set, closeAll, nil
}

// DevicesCmd lists input devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run(g *Globals) error {
	devs, err := portaudio.Devices()
	if err != nil {
		return err
	}
	for _, d := range devs {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %2d  %-40s %2d ch  %.0f Hz\n", mark, d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

// BackendsCmd lists the registered transform backends.
type BackendsCmd struct{}

func (c *BackendsCmd) Run(g *Globals) error {
	cli.Fprint(os.Stdout, cli.RenderBackends(transform.Global.Entries(), cpu.DetectFeatures()))
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("%s %s\n", cli.TitleStyle.Render("lfnwatch"), version)
	return nil
}
