// Package config holds the analysis and capture settings shared by every
// lfnwatch mode.
//
// Start from Default, adjust with Options or FromEnv, and call Validate
// before use. Every validation failure wraps ErrConfigInvalid.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/dsp/core"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

// ErrConfigInvalid marks configuration a session cannot start with.
var ErrConfigInvalid = errors.New("config: invalid configuration")

// Queue drop policies.
const (
	DropOldest = "oldest"
	DropNewest = "newest"
)

// ClickHouse configures the result store.
type ClickHouse struct {
	Addr     string
	Database string
	User     string
	Password string
}

// Enabled reports whether a store address is set.
func (c ClickHouse) Enabled() bool { return c.Addr != "" }

// MQTT configures the alert notifier.
type MQTT struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// Enabled reports whether a broker is set.
func (m MQTT) Enabled() bool { return m.Broker != "" }

// Config is the full set of session and analysis settings.
type Config struct {
	// Device selects the capture device: empty for the system default, a
	// numeric index, or a device name.
	Device     string
	SampleRate float64
	Channels   int

	BlockDuration   time.Duration
	SegmentDuration time.Duration
	// TotalDuration bounds a recording; zero runs until stopped.
	TotalDuration time.Duration

	FrameSize     int
	HopSize       int
	ChannelPolicy analysis.ChannelPolicy

	LFNBand               peaks.Range
	UltrasonicBand        peaks.Range
	LFNThresholdDB        float64
	UltrasonicThresholdDB float64
	MaxPeaks              int
	// MinPeakSpacingHz of zero uses two bin widths.
	MinPeakSpacingHz   float64
	ReferenceAmplitude float64
	FloorDB            float64
	Normalize          bool

	Acceleration  bool
	AlertCooldown time.Duration

	QueueCapacity int
	DropPolicy    string
	DrainTimeout  time.Duration

	OutputDir string
	// HighPassHz is the corner of the high-pass applied to recorded
	// segments; zero disables it.
	HighPassHz float64

	ClickHouse ClickHouse
	MQTT       MQTT
}

// Default returns the live monitoring defaults: 48 kHz stereo, 5 s blocks,
// 30 min segments, LFN 45 dB and ultrasonic 50 dB thresholds.
func Default() Config {
	ranges := peaks.DefaultRanges()
	return Config{
		SampleRate:            48000,
		Channels:              2,
		BlockDuration:         5 * time.Second,
		SegmentDuration:       30 * time.Minute,
		FrameSize:             16384,
		ChannelPolicy:         analysis.Downmix,
		LFNBand:               ranges[0],
		UltrasonicBand:        ranges[1],
		LFNThresholdDB:        45,
		UltrasonicThresholdDB: 50,
		MaxPeaks:              peaks.MaxPeaks,
		ReferenceAmplitude:    analysis.DefaultReference,
		FloorDB:               core.DefaultFloorDB,
		Acceleration:          true,
		QueueCapacity:         10,
		DropPolicy:            DropOldest,
		DrainTimeout:          5 * time.Second,
		OutputDir:             "recordings",
		HighPassHz:            10,
		MQTT: MQTT{
			ClientID: "lfnwatch",
			Topic:    "lfnwatch/alerts",
		},
	}
}

// Option modifies a Config.
type Option func(*Config)

// New returns Default with opts applied, validated.
func New(opts ...Option) (Config, error) {
	c := Default()
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return c, c.Validate()
}

// WithDevice selects the capture device.
func WithDevice(sel string) Option { return func(c *Config) { c.Device = sel } }

// WithSampleRate sets the session sample rate in Hz.
func WithSampleRate(hz float64) Option { return func(c *Config) { c.SampleRate = hz } }

// WithChannels sets the channel count.
func WithChannels(n int) Option { return func(c *Config) { c.Channels = n } }

// WithBlockDuration sets the analysis block length.
func WithBlockDuration(d time.Duration) Option { return func(c *Config) { c.BlockDuration = d } }

// WithSegmentDuration sets the target segment length.
func WithSegmentDuration(d time.Duration) Option { return func(c *Config) { c.SegmentDuration = d } }

// WithTotalDuration bounds the recording length.
func WithTotalDuration(d time.Duration) Option { return func(c *Config) { c.TotalDuration = d } }

// WithFrameSize sets the FFT frame length.
func WithFrameSize(n int) Option { return func(c *Config) { c.FrameSize = n } }

// WithThresholds sets both band thresholds in dB.
func WithThresholds(lfnDB, ultrasonicDB float64) Option {
	return func(c *Config) {
		c.LFNThresholdDB = lfnDB
		c.UltrasonicThresholdDB = ultrasonicDB
	}
}

// WithAcceleration enables or disables the accelerated FFT backend.
func WithAcceleration(enabled bool) Option { return func(c *Config) { c.Acceleration = enabled } }

// WithAlertCooldown sets the per-band alert suppression window.
func WithAlertCooldown(d time.Duration) Option { return func(c *Config) { c.AlertCooldown = d } }

// WithOutputDir sets the directory for recorded segments.
func WithOutputDir(dir string) Option { return func(c *Config) { c.OutputDir = dir } }

// Ranges returns the configured bands in evaluation order.
func (c Config) Ranges() []peaks.Range {
	lfn, us := c.LFNBand, c.UltrasonicBand
	lfn.Band, us.Band = peaks.LFN, peaks.Ultrasonic
	return []peaks.Range{lfn, us}
}

// Thresholds returns the per-band alert thresholds.
func (c Config) Thresholds() alert.Thresholds {
	return alert.Thresholds{peaks.LFN: c.LFNThresholdDB, peaks.Ultrasonic: c.UltrasonicThresholdDB}
}

// BlockFrames returns the number of sample frames in one block.
func (c Config) BlockFrames() int {
	return int(math.Round(c.BlockDuration.Seconds() * c.SampleRate))
}

// BlocksPerSegment returns how many whole blocks make one segment.
func (c Config) BlocksPerSegment() int {
	if c.BlockDuration <= 0 {
		return 0
	}
	return int(c.SegmentDuration / c.BlockDuration)
}

// ExpectedSegments returns ceil(TotalDuration/SegmentDuration), or zero for
// an unbounded session.
func (c Config) ExpectedSegments() int {
	if c.TotalDuration <= 0 || c.SegmentDuration <= 0 {
		return 0
	}
	return int((c.TotalDuration + c.SegmentDuration - 1) / c.SegmentDuration)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfigInvalid}, args...)...)
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	if c.Device != "" && strings.TrimSpace(c.Device) == "" {
		add(invalid("device selector %q is blank", c.Device))
	}
	if !(c.SampleRate >= 8000 && c.SampleRate <= 384000) {
		add(invalid("sample rate %v outside 8000-384000 Hz", c.SampleRate))
	}
	if c.Channels < 1 || c.Channels > 32 {
		add(invalid("channel count %d outside 1-32", c.Channels))
	}
	if c.BlockDuration <= 0 {
		add(invalid("block duration %v must be > 0", c.BlockDuration))
	}
	switch {
	case c.SegmentDuration < c.BlockDuration:
		add(invalid("segment duration %v shorter than block duration %v", c.SegmentDuration, c.BlockDuration))
	case c.BlockDuration > 0 && c.SegmentDuration%c.BlockDuration != 0:
		add(invalid("segment duration %v is not a multiple of block duration %v", c.SegmentDuration, c.BlockDuration))
	}
	if c.TotalDuration < 0 {
		add(invalid("total duration %v must be >= 0", c.TotalDuration))
	}
	if c.FrameSize < 64 || c.FrameSize > 1<<20 || !core.IsPowerOfTwo(c.FrameSize) {
		add(invalid("frame size %d must be a power of two in 64-1048576", c.FrameSize))
	}
	if c.HopSize < 0 || c.HopSize > c.FrameSize {
		add(invalid("hop size %d outside 0-%d", c.HopSize, c.FrameSize))
	}
	if c.ChannelPolicy != analysis.Downmix && c.ChannelPolicy != analysis.PerChannel {
		add(invalid("channel policy %v", c.ChannelPolicy))
	}
	for _, r := range c.Ranges() {
		if err := r.Validate(); err != nil {
			add(invalid("%v", err))
		}
	}
	if c.MaxPeaks < 1 || c.MaxPeaks > peaks.MaxPeaks {
		add(invalid("max peaks %d outside 1-%d", c.MaxPeaks, peaks.MaxPeaks))
	}
	if c.MinPeakSpacingHz < 0 {
		add(invalid("min peak spacing %v must be >= 0", c.MinPeakSpacingHz))
	}
	if !(c.ReferenceAmplitude > 0) || math.IsInf(c.ReferenceAmplitude, 0) {
		add(invalid("reference amplitude %v must be > 0", c.ReferenceAmplitude))
	}
	if !(c.FloorDB < 0) {
		add(invalid("floor %v dB must be < 0", c.FloorDB))
	}
	if math.IsNaN(c.LFNThresholdDB) || math.IsNaN(c.UltrasonicThresholdDB) {
		add(invalid("thresholds must be numbers"))
	}
	if c.AlertCooldown < 0 {
		add(invalid("alert cooldown %v must be >= 0", c.AlertCooldown))
	}
	if c.QueueCapacity < 1 {
		add(invalid("queue capacity %d must be >= 1", c.QueueCapacity))
	}
	if c.DropPolicy != DropOldest && c.DropPolicy != DropNewest {
		add(invalid("drop policy %q, want %q or %q", c.DropPolicy, DropOldest, DropNewest))
	}
	if c.DrainTimeout < 0 {
		add(invalid("drain timeout %v must be >= 0", c.DrainTimeout))
	}
	if c.HighPassHz < 0 || (c.SampleRate > 0 && c.HighPassHz >= c.SampleRate/2) {
		add(invalid("high-pass corner %v Hz outside 0-%v", c.HighPassHz, c.SampleRate/2))
	}
	return errors.Join(errs...)
}
