// Package pipeline runs one audio block through spectral analysis, band peak
// extraction and alert evaluation, then hands the records to sinks.
//
// Batch analysis and capture sessions share this path. A Pipeline processes
// blocks one at a time, so results and alerts leave it in block order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/level"
	"github.com/cwbudde/lfnwatch/measure/peaks"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRanges sets the bands to extract. Default is peaks.DefaultRanges.
func WithRanges(ranges ...peaks.Range) Option {
	return func(p *Pipeline) { p.ranges = ranges }
}

// WithExtractor replaces the default peak extractor.
func WithExtractor(e *peaks.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithThresholds sets the alert thresholds. Default is alert.DefaultThresholds.
func WithThresholds(th alert.Thresholds) Option {
	return func(p *Pipeline) { p.thresholds = th }
}

// WithCooldown enables per-band alert suppression. Nil or a zero window
// disables it.
func WithCooldown(c *alert.Cooldown) Option {
	return func(p *Pipeline) { p.cooldown = c }
}

// WithResultSink adds a result sink.
func WithResultSink(s ResultSink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.results = append(p.results, s)
		}
	}
}

// WithAlertSink adds an alert sink.
func WithAlertSink(s AlertSink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.alerts = append(p.alerts, s)
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Stats are running pipeline counters.
type Stats struct {
	Blocks     int64
	Alerts     int64
	Suppressed int64
	SinkErrors int64
}

// Pipeline is not safe for concurrent Process calls.
type Pipeline struct {
	analyzer   *analysis.Analyzer
	extractor  *peaks.Extractor
	ranges     []peaks.Range
	thresholds alert.Thresholds
	cooldown   *alert.Cooldown
	results    []ResultSink
	alerts     []AlertSink
	logger     logging.Logger

	meter    *level.Meter
	meterKey streamKey

	blocks     atomic.Int64
	alertCount atomic.Int64
	suppressed atomic.Int64
	sinkErrors atomic.Int64
}

// New builds a pipeline around analyzer. The pipeline does not own the
// analyzer.
func New(analyzer *analysis.Analyzer, opts ...Option) (*Pipeline, error) {
	if analyzer == nil {
		return nil, errors.New("pipeline: nil analyzer")
	}
	p := &Pipeline{
		analyzer:   analyzer,
		extractor:  peaks.NewExtractor(),
		ranges:     peaks.DefaultRanges(),
		thresholds: alert.DefaultThresholds(),
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	for _, r := range p.ranges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	p.logger = logging.OrGlobal(p.logger).WithFields(logging.Fields{"component": "pipeline"})
	return p, nil
}

// Process analyzes block, evaluates alerts and delivers both to the sinks.
//
// Only analysis failures are returned. Sink errors are logged and counted so
// that one failing collaborator does not stop the others.
func (p *Pipeline) Process(ctx context.Context, block *analysis.AudioBlock) (analysis.Result, []alert.Event, error) {
	spectra, err := p.analyzer.Spectra(block)
	if err != nil {
		return analysis.Result{}, nil, err
	}

	res := analysis.Result{
		Source:     block.Source,
		BlockIndex: block.Index,
		Timestamp:  block.Timestamp,
		Duration:   block.ActualDuration(),
		SampleRate: block.SampleRate,
		Bands:      analysis.Build(spectra, p.extractor, p.ranges),
		Backend:    p.analyzer.Dispatcher().Backend(),
		Level:      p.measure(block),
	}
	if len(spectra) > 0 {
		res.BinHz = spectra[0].BinHz
	}

	events := alert.Evaluate(&res, p.thresholds)
	events, suppressed := p.cooldown.Filter(events)
	res.Alerts = alert.Flags(events)

	p.blocks.Add(1)
	p.alertCount.Add(int64(len(events)))
	p.suppressed.Add(int64(suppressed))

	for _, s := range p.results {
		if err := s.HandleResult(ctx, res); err != nil {
			p.sinkError(err, "result sink failed", block)
		}
	}
	for _, e := range events {
		for _, s := range p.alerts {
			if err := s.HandleAlert(ctx, e); err != nil {
				p.sinkError(err, "alert sink failed", block)
			}
		}
	}
	return res, events, nil
}

// streamKey identifies a continuous stream for the weighting filters.
type streamKey struct {
	source     string
	sampleRate float64
	channels   int
}

// measure returns the block level. Weighting filter state carries from block
// to block of the same stream and restarts when the stream changes.
func (p *Pipeline) measure(block *analysis.AudioBlock) level.Summary {
	key := streamKey{block.Source, block.SampleRate, block.Channels}
	if p.meter == nil || key != p.meterKey {
		p.meter = level.NewMeter(p.analyzer.Reference(), p.analyzer.FloorDB())
		p.meterKey = key
		if err := p.meter.Weight(block.SampleRate, block.Channels); err != nil {
			p.logger.Warn("weighted levels unavailable", logging.Fields{"source": block.Source, "error": err.Error()})
		}
	}
	p.meter.Update(block.Samples)
	return p.meter.Take()
}

func (p *Pipeline) sinkError(err error, msg string, block *analysis.AudioBlock) {
	p.sinkErrors.Add(1)
	p.logger.Error(err, msg, logging.Fields{"source": block.Source, "block": block.Index})
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Blocks:     p.blocks.Load(),
		Alerts:     p.alertCount.Load(),
		Suppressed: p.suppressed.Load(),
		SinkErrors: p.sinkErrors.Load(),
	}
}

// Backend returns the transform backend currently used by the analyzer.
func (p *Pipeline) Backend() string {
	return p.analyzer.Dispatcher().Backend()
}

// FellBack reports whether the analyzer has left the accelerated backend.
func (p *Pipeline) FellBack() bool {
	fell, _ := p.analyzer.Dispatcher().FellBack()
	return fell
}
