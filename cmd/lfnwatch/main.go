// Command lfnwatch analyzes audio for low-frequency noise and ultrasonic
// energy, from files or a live capture device.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/internal/cli"
	"github.com/cwbudde/lfnwatch/internal/logging"
)

var version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	EnvFile []string `name:"env-file" help:"Load settings from these .env files" type:"path" default:".env"`
	Debug   bool     `help:"Enable debug logging"`
	Quiet   bool     `short:"q" help:"Only log warnings and errors"`

	Rate     float64  `help:"Sample rate in Hz (overrides LFN_SAMPLE_RATE)"`
	Channels int      `help:"Channel count"`
	Frame    int      `help:"FFT frame size (power of two)"`
	Block    float64  `help:"Block duration in seconds"`
	NoAccel  bool     `name:"no-accel" help:"Use the reference transform only"`
	LFNDB    *float64 `name:"lfn-db" help:"LFN alert threshold in dB"`
	USDB     *float64 `name:"us-db" help:"Ultrasonic alert threshold in dB"`
	PerChan  bool     `name:"per-channel" help:"Analyze every channel instead of the downmix"`

	logger logging.Logger
}

// CLI is the command tree.
type CLI struct {
	Globals

	Analyze  AnalyzeCmd  `cmd:"" help:"Analyze audio files or directories"`
	Monitor  MonitorCmd  `cmd:"" help:"Monitor a capture device and report alerts"`
	Record   RecordCmd   `cmd:"" help:"Record a capture device into rotating segments while monitoring"`
	Devices  DevicesCmd  `cmd:"" help:"List capture devices"`
	Backends BackendsCmd `cmd:"" help:"List transform backends"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c CLI
	kctx := kong.Parse(&c,
		kong.Name("lfnwatch"),
		kong.Description("Low-frequency noise and ultrasonic monitor"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	c.logger = newLogger(c.Globals)
	logging.SetGlobalLogger(c.logger)

	err := kctx.Run(&c.Globals)
	if err != nil && !errors.Is(err, context.Canceled) {
		cli.PrintError(err)
		os.Exit(1)
	}
}

func newLogger(g Globals) logging.Logger {
	l := logging.NewDefaultLogger()
	switch {
	case g.Debug:
		l.SetLevel(logging.DebugLevel)
	case g.Quiet:
		l.SetLevel(logging.WarnLevel)
	default:
		l.SetLevel(logging.InfoLevel)
	}
	return l
}

// loadConfig reads the environment and applies the global flags.
func (g *Globals) loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv(g.EnvFile...)
	if err != nil {
		return cfg, err
	}
	g.apply(&cfg)
	return cfg, cfg.Validate()
}
