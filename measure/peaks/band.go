package peaks

import (
	"errors"
	"fmt"
	"strings"
)

// Band tags a frequency range of interest.
type Band int

const (
	// LFN is the low-frequency-noise band.
	LFN Band = iota
	// Ultrasonic is the band just above human hearing.
	Ultrasonic
)

// Bands lists every band in evaluation order.
var Bands = []Band{LFN, Ultrasonic}

func (b Band) String() string {
	switch b {
	case LFN:
		return "LFN"
	case Ultrasonic:
		return "ULTRASONIC"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// MarshalText encodes the band name.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText accepts the names produced by String, case-insensitively.
func (b *Band) UnmarshalText(text []byte) error {
	v, err := ParseBand(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBand converts a band name to a Band.
func ParseBand(name string) (Band, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LFN":
		return LFN, nil
	case "ULTRASONIC", "HF":
		return Ultrasonic, nil
	default:
		return 0, fmt.Errorf("peaks: unknown band %q", name)
	}
}

// Range is the inclusive frequency span of a band.
type Range struct {
	Band   Band
	LowHz  float64
	HighHz float64
}

var errRange = errors.New("peaks: invalid band range")

// Validate checks that the range is positive and ordered.
func (r Range) Validate() error {
	if r.LowHz < 0 || r.HighHz <= r.LowHz {
		return fmt.Errorf("%w: %s %.1f-%.1f Hz", errRange, r.Band, r.LowHz, r.HighHz)
	}
	return nil
}

// Contains reports whether f lies in [LowHz, HighHz].
func (r Range) Contains(f float64) bool {
	return f >= r.LowHz && f <= r.HighHz
}

// DefaultRanges returns the standard LFN (20-100 Hz) and ultrasonic
// (20-24 kHz) ranges.
func DefaultRanges() []Range {
	return []Range{
		{Band: LFN, LowHz: 20, HighHz: 100},
		{Band: Ultrasonic, LowHz: 20000, HighHz: 24000},
	}
}
