package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwbudde/lfnwatch/analysis"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "LFN_"

// FromEnv loads the given .env files (default ".env"; missing files are
// ignored), then overlays LFN_* variables on Default. The result is
// validated.
func FromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, invalid("load %s: %v", f, err)
		}
	}

	c := Default()
	if err := c.overlayEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, invalid("%s%s=%q: %v", EnvPrefix, key, v, err))
			return
		}
		*dst = f
	}
}

func (r *envReader) int(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, invalid("%s%s=%q: %v", EnvPrefix, key, v, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, invalid("%s%s=%q: %v", EnvPrefix, key, v, err))
			return
		}
		*dst = b
	}
}

// duration accepts Go duration syntax or a plain number of seconds.
func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, invalid("%s%s=%q: not a duration", EnvPrefix, key, v))
		return
	}
	*dst = time.Duration(secs * float64(time.Second))
}

func (c *Config) overlayEnv(lookup func(string) (string, bool)) error {
	r := &envReader{lookup: lookup}

	r.str("DEVICE", &c.Device)
	r.float("SAMPLE_RATE", &c.SampleRate)
	r.int("CHANNELS", &c.Channels)
	r.duration("BLOCK_DURATION", &c.BlockDuration)
	r.duration("SEGMENT_DURATION", &c.SegmentDuration)
	r.duration("TOTAL_DURATION", &c.TotalDuration)
	r.int("FRAME_SIZE", &c.FrameSize)
	r.int("HOP_SIZE", &c.HopSize)
	if v, ok := r.get("CHANNEL_POLICY"); ok {
		p, err := analysis.ParseChannelPolicy(v)
		if err != nil {
			r.errs = append(r.errs, invalid("%v", err))
		} else {
			c.ChannelPolicy = p
		}
	}
	r.float("LFN_LOW_HZ", &c.LFNBand.LowHz)
	r.float("LFN_HIGH_HZ", &c.LFNBand.HighHz)
	r.float("ULTRASONIC_LOW_HZ", &c.UltrasonicBand.LowHz)
	r.float("ULTRASONIC_HIGH_HZ", &c.UltrasonicBand.HighHz)
	r.float("THRESHOLD_LFN_DB", &c.LFNThresholdDB)
	r.float("THRESHOLD_ULTRASONIC_DB", &c.UltrasonicThresholdDB)
	r.int("MAX_PEAKS", &c.MaxPeaks)
	r.float("MIN_PEAK_SPACING_HZ", &c.MinPeakSpacingHz)
	r.float("REFERENCE", &c.ReferenceAmplitude)
	r.float("FLOOR_DB", &c.FloorDB)
	r.bool("NORMALIZE", &c.Normalize)
	r.bool("ACCELERATION", &c.Acceleration)
	r.duration("ALERT_COOLDOWN", &c.AlertCooldown)
	r.int("QUEUE_CAPACITY", &c.QueueCapacity)
	r.str("DROP_POLICY", &c.DropPolicy)
	r.duration("DRAIN_TIMEOUT", &c.DrainTimeout)
	r.str("OUTPUT_DIR", &c.OutputDir)
	r.float("HIGHPASS_HZ", &c.HighPassHz)

	r.str("CLICKHOUSE_ADDR", &c.ClickHouse.Addr)
	r.str("CLICKHOUSE_DB", &c.ClickHouse.Database)
	r.str("CLICKHOUSE_USER", &c.ClickHouse.User)
	r.str("CLICKHOUSE_PASS", &c.ClickHouse.Password)

	r.str("MQTT_BROKER", &c.MQTT.Broker)
	r.str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	r.str("MQTT_TOPIC", &c.MQTT.Topic)
	r.str("MQTT_USERNAME", &c.MQTT.Username)
	r.str("MQTT_PASSWORD", &c.MQTT.Password)

	return errors.Join(r.errs...)
}
