// Package alert compares band peak levels with thresholds.
//
// Evaluate is stateless. Live monitoring may wrap it with a Cooldown that
// suppresses repeated events per band; a zero window suppresses nothing.
package alert

import (
	"sync"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

// Thresholds maps a band to its alert level in dB. Bands without an entry
// never alert.
type Thresholds map[peaks.Band]float64

// DefaultThresholds are the live monitoring thresholds: LFN 45 dB,
// ultrasonic 50 dB.
func DefaultThresholds() Thresholds {
	return Thresholds{peaks.LFN: 45, peaks.Ultrasonic: 50}
}

// Event records one threshold crossing.
type Event struct {
	Band        peaks.Band
	LevelDB     float64
	ThresholdDB float64
	FrequencyHz float64
	Channel     int
	Timestamp   time.Time
	Source      string
	BlockIndex  int
}

// Exceedance returns how far the level was above the threshold.
func (e Event) Exceedance() float64 { return e.LevelDB - e.ThresholdDB }

// Evaluate returns one event per band whose top peak is strictly above its
// threshold, in peaks.Bands order. Equal levels do not alert.
func Evaluate(r *analysis.Result, th Thresholds) []Event {
	var out []Event
	for _, b := range peaks.Bands {
		limit, ok := th[b]
		if !ok {
			continue
		}
		top, ok := topWithChannel(r, b)
		if !ok || !(top.rec.LevelDB > limit) {
			continue
		}
		out = append(out, Event{
			Band:        b,
			LevelDB:     top.rec.LevelDB,
			ThresholdDB: limit,
			FrequencyHz: top.rec.FrequencyHz,
			Channel:     top.channel,
			Timestamp:   r.Timestamp,
			Source:      r.Source,
			BlockIndex:  r.BlockIndex,
		})
	}
	return out
}

type channelPeak struct {
	rec     peaks.Record
	channel int
}

func topWithChannel(r *analysis.Result, b peaks.Band) (channelPeak, bool) {
	top, ok := r.Top(b)
	if !ok {
		return channelPeak{}, false
	}
	for _, bp := range r.Bands {
		if bp.Band == b && len(bp.Peaks) > 0 && bp.Peaks[0] == top {
			return channelPeak{rec: top, channel: bp.Channel}, true
		}
	}
	return channelPeak{rec: top, channel: analysis.Downmixed}, true
}

// Flags returns the bands present in events, in order.
func Flags(events []Event) []peaks.Band {
	if len(events) == 0 {
		return nil
	}
	out := make([]peaks.Band, 0, len(events))
	for _, e := range events {
		out = append(out, e.Band)
	}
	return out
}

// Cooldown drops events for a band that follow an emitted event of the same
// band by less than Window. Timestamps come from the events, so the result
// does not depend on processing speed.
type Cooldown struct {
	Window time.Duration

	mu   sync.Mutex
	last map[peaks.Band]time.Time
}

// NewCooldown returns a Cooldown with the given window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{Window: window}
}

// Filter returns the events that pass and the number suppressed.
func (c *Cooldown) Filter(events []Event) ([]Event, int) {
	if c == nil || c.Window <= 0 || len(events) == 0 {
		return events, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[peaks.Band]time.Time)
	}

	out := events[:0:0]
	suppressed := 0
	for _, e := range events {
		if prev, ok := c.last[e.Band]; ok && e.Timestamp.Sub(prev) < c.Window {
			suppressed++
			continue
		}
		c.last[e.Band] = e.Timestamp
		out = append(out, e)
	}
	return out, suppressed
}

// Reset forgets all previous events.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}
