package pipeline

import (
	"context"
	"sync"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
)

// ResultSink receives every analysis result, in block order per source.
// Implementations must not retain references into the result's slices
// beyond the call unless they copy them.
type ResultSink interface {
	HandleResult(ctx context.Context, r analysis.Result) error
}

// AlertSink receives alert events after cooldown filtering.
type AlertSink interface {
	HandleAlert(ctx context.Context, e alert.Event) error
}

// ResultSinkFunc adapts a function to ResultSink.
type ResultSinkFunc func(ctx context.Context, r analysis.Result) error

func (f ResultSinkFunc) HandleResult(ctx context.Context, r analysis.Result) error { return f(ctx, r) }

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(ctx context.Context, e alert.Event) error

func (f AlertSinkFunc) HandleAlert(ctx context.Context, e alert.Event) error { return f(ctx, e) }

// LogSink writes alerts at warn level and results at debug level.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) HandleResult(_ context.Context, r analysis.Result) error {
	fields := logging.Fields{"source": r.Source, "block": r.BlockIndex, "backend": r.Backend, "rms_db": r.Level.RMSDB}
	if r.Level.Weighted {
		fields["c_minus_a_db"] = r.Level.CMinusA()
	}
	for _, bp := range r.Bands {
		if len(bp.Peaks) > 0 {
			fields[bp.Band.String()+"_hz"] = bp.Peaks[0].FrequencyHz
			fields[bp.Band.String()+"_db"] = bp.Peaks[0].LevelDB
		}
	}
	logging.OrGlobal(s.Logger).Debug("block analyzed", fields)
	return nil
}

func (s LogSink) HandleAlert(_ context.Context, e alert.Event) error {
	logging.OrGlobal(s.Logger).Warn("level above threshold", logging.Fields{
		"band":      e.Band.String(),
		"level_db":  e.LevelDB,
		"threshold": e.ThresholdDB,
		"freq_hz":   e.FrequencyHz,
		"source":    e.Source,
		"block":     e.BlockIndex,
	})
	return nil
}

// Collector keeps everything it receives in memory.
type Collector struct {
	mu      sync.Mutex
	results []analysis.Result
	alerts  []alert.Event
}

func (c *Collector) HandleResult(_ context.Context, r analysis.Result) error {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	return nil
}

func (c *Collector) HandleAlert(_ context.Context, e alert.Event) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, e)
	c.mu.Unlock()
	return nil
}

// Results returns a copy of the collected results.
func (c *Collector) Results() []analysis.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]analysis.Result(nil), c.results...)
}

// Alerts returns a copy of the collected alerts.
func (c *Collector) Alerts() []alert.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]alert.Event(nil), c.alerts...)
}
