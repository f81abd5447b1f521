// Package batch analyzes stored audio files.
//
// Every file is cut into blocks of the configured duration and each block
// goes through the same pipeline as live capture. Alert evaluation is
// stateless: no cooldown applies and files do not influence each other.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/level"
	"github.com/cwbudde/lfnwatch/measure/peaks"
	"github.com/cwbudde/lfnwatch/pipeline"
)

// Extensions lists the file types picked up when walking directories.
var Extensions = []string{".wav", ".flac", ".mp3", ".ogg", ".m4a", ".aac", ".aiff", ".aif"}

var errNoAudio = errors.New("batch: file contains no samples")

// BandMax is the strongest top peak of one band across a file's blocks.
type BandMax struct {
	Band peaks.Band
	Peak peaks.Record
	// Channel is the analyzed channel, or analysis.Downmixed.
	Channel    int
	BlockIndex int
	Found      bool
}

// FileReport summarizes one analyzed file.
type FileReport struct {
	Path       string
	SampleRate float64
	Channels   int
	Duration   time.Duration
	Blocks     int
	// Max holds one entry per configured band, in band order.
	Max []BandMax
	// Alerts are evaluated on the per-band maxima.
	Alerts []alert.Event
	// BlockAlerts counts per-block threshold crossings.
	BlockAlerts int
	// Level is the broadband level over the whole file.
	Level level.Summary
	// Results holds every block result when result retention is enabled.
	Results []analysis.Result
	Backend string
	Err     error
}

// Alerted reports whether the file alerted in band b.
func (r *FileReport) Alerted(b peaks.Band) bool {
	for _, e := range r.Alerts {
		if e.Band == b {
			return true
		}
	}
	return false
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFFmpeg sets the ffmpeg binary used for non-WAV files. Default "ffmpeg".
func WithFFmpeg(path string) Option {
	return func(a *Analyzer) { a.ffmpeg = path }
}

// WithKeepResults retains per-block results in FileReport.Results.
func WithKeepResults(keep bool) Option {
	return func(a *Analyzer) { a.keep = keep }
}

// WithResultSink forwards every block result to s.
func WithResultSink(s pipeline.ResultSink) Option {
	return func(a *Analyzer) { a.pipelineOpts = append(a.pipelineOpts, pipeline.WithResultSink(s)) }
}

// WithAlertSink forwards every block alert to s.
func WithAlertSink(s pipeline.AlertSink) Option {
	return func(a *Analyzer) { a.pipelineOpts = append(a.pipelineOpts, pipeline.WithAlertSink(s)) }
}

// WithTransformOptions passes options to the transform dispatcher.
func WithTransformOptions(opts ...transform.Option) Option {
	return func(a *Analyzer) { a.transformOpts = append(a.transformOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithClock replaces time.Now for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// Analyzer runs files through the analysis pipeline. It is not safe for
// concurrent use.
type Analyzer struct {
	cfg           config.Config
	ffmpeg        string
	keep          bool
	pipelineOpts  []pipeline.Option
	transformOpts []transform.Option
	logger        logging.Logger
	now           func() time.Time

	spectral *analysis.Analyzer
	pipe     *pipeline.Pipeline
	buf      []float64
}

// New builds a batch analyzer from cfg. Capture-only settings are ignored;
// the alert cooldown is not applied.
func New(cfg config.Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{cfg: cfg, ffmpeg: "ffmpeg", now: time.Now}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	a.logger = logging.OrGlobal(a.logger).WithFields(logging.Fields{"component": "batch"})

	aopts := []analysis.Option{
		analysis.WithReference(cfg.ReferenceAmplitude),
		analysis.WithFloor(cfg.FloorDB),
		analysis.WithChannelPolicy(cfg.ChannelPolicy),
		analysis.WithNormalize(cfg.Normalize),
		analysis.WithLogger(a.logger),
		analysis.WithTransformOptions(append([]transform.Option{transform.WithAcceleration(cfg.Acceleration)}, a.transformOpts...)...),
	}
	if cfg.HopSize > 0 {
		aopts = append(aopts, analysis.WithHop(cfg.HopSize))
	}
	spectral, err := analysis.NewAnalyzer(cfg.FrameSize, aopts...)
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.New(spectral, append([]pipeline.Option{
		pipeline.WithRanges(cfg.Ranges()...),
		pipeline.WithThresholds(cfg.Thresholds()),
		pipeline.WithExtractor(peaks.NewExtractor(
			peaks.WithMaxPeaks(cfg.MaxPeaks),
			peaks.WithMinSpacingHz(cfg.MinPeakSpacingHz),
		)),
		pipeline.WithLogger(a.logger),
	}, a.pipelineOpts...)...)
	if err != nil {
		_ = spectral.Close()
		return nil, err
	}
	a.spectral, a.pipe = spectral, pipe
	return a, nil
}

// Close releases the transform backends.
func (a *Analyzer) Close() error { return a.spectral.Close() }

// Stats returns the pipeline counters accumulated over all files.
func (a *Analyzer) Stats() pipeline.Stats { return a.pipe.Stats() }

// AnalyzePaths analyzes files and directories. Directories are walked
// recursively for Extensions; files are reported in lexical order. A file
// that fails is reported with Err set and does not stop the others.
func (a *Analyzer) AnalyzePaths(ctx context.Context, paths ...string) ([]FileReport, error) {
	files, err := Collect(paths...)
	if err != nil {
		return nil, err
	}
	reports := make([]FileReport, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := a.AnalyzeFile(ctx, f)
		if err != nil {
			a.logger.Error(err, "file analysis failed", logging.Fields{"path": f})
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Collect expands paths into the sorted list of audio files they name.
func Collect(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == p || isAudio(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func isAudio(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// AnalyzeFile analyzes one file. The returned report carries Err as well.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (FileReport, error) {
	rep := FileReport{Path: path}
	fail := func(err error) (FileReport, error) {
		rep.Err = err
		return rep, err
	}

	src, err := a.open(ctx, path)
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	rep.SampleRate, rep.Channels = src.SampleRate(), src.Channels()
	blockFrames := int(math.Round(a.cfg.BlockDuration.Seconds() * rep.SampleRate))
	n := blockFrames * rep.Channels
	if cap(a.buf) < n {
		a.buf = make([]float64, n)
	}

	for _, r := range a.cfg.Ranges() {
		rep.Max = append(rep.Max, BandMax{Band: r.Band})
	}

	meter := level.NewMeter(a.cfg.ReferenceAmplitude, a.cfg.FloorDB)
	if err := meter.Weight(rep.SampleRate, rep.Channels); err != nil {
		a.logger.Warn("weighted levels unavailable", logging.Fields{"file": path, "error": err.Error()})
	}
	start := a.now()
	var frames int64
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		got, rerr := readFull(src, a.buf[:n])
		got -= got % rep.Channels
		if got > 0 {
			block := &analysis.AudioBlock{
				Source:     path,
				Index:      rep.Blocks,
				Samples:    a.buf[:got],
				SampleRate: rep.SampleRate,
				Channels:   rep.Channels,
				Timestamp:  start.Add(frameTime(frames, rep.SampleRate)),
				Duration:   a.cfg.BlockDuration,
			}
			res, events, err := a.pipe.Process(ctx, block)
			if err != nil {
				return fail(fmt.Errorf("batch: %s block %d: %w", path, rep.Blocks, err))
			}
			rep.merge(res)
			meter.Update(block.Samples)
			rep.BlockAlerts += len(events)
			if a.keep {
				rep.Results = append(rep.Results, res)
			}
			rep.Backend = res.Backend
			rep.Blocks++
			frames += int64(got / rep.Channels)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(fmt.Errorf("batch: read %s: %w", path, rerr))
		}
	}
	if rep.Blocks == 0 {
		return fail(fmt.Errorf("%w: %s", errNoAudio, path))
	}
	rep.Duration = frameTime(frames, rep.SampleRate)
	rep.Level = meter.Summary()
	rep.Alerts = alert.Evaluate(rep.summary(start), a.cfg.Thresholds())

	a.logger.Info("file analyzed", logging.Fields{
		"path": path, "blocks": rep.Blocks, "duration": rep.Duration.String(), "alerts": len(rep.Alerts),
	})
	return rep, nil
}

func (a *Analyzer) open(ctx context.Context, path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		src, err := openWAV(path)
		if err == nil {
			return src, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("batch: %w", err)
		}
		a.logger.Debug("wav decoder failed, trying ffmpeg", logging.Fields{"path": path, "error": err.Error()})
	}
	return openFFmpeg(ctx, a.ffmpeg, path, a.cfg.SampleRate, a.cfg.Channels)
}

func frameTime(frames int64, rate float64) time.Duration {
	return time.Duration(math.Round(float64(frames) * float64(time.Second) / rate))
}

// readFull reads until dst is full or the source ends.
func readFull(src Source, dst []float64) (int, error) {
	total := 0
	for total < len(dst) {
		n, err := src.Read(dst[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrNoProgress
		}
	}
	return total, nil
}

func (r *FileReport) merge(res analysis.Result) {
	for i := range r.Max {
		m := &r.Max[i]
		for _, bp := range res.Peaks(m.Band) {
			top, ok := peaks.Top(bp.Peaks)
			if !ok {
				continue
			}
			if !m.Found || top.LevelDB > m.Peak.LevelDB {
				m.Peak, m.Channel, m.BlockIndex, m.Found = top, bp.Channel, res.BlockIndex, true
			}
		}
	}
}

// summary is a file-level result holding only the per-band maxima.
func (r *FileReport) summary(start time.Time) *analysis.Result {
	res := &analysis.Result{
		Source:     r.Path,
		Timestamp:  start,
		Duration:   r.Duration,
		SampleRate: r.SampleRate,
		Backend:    r.Backend,
	}
	for _, m := range r.Max {
		bp := analysis.BandPeaks{Band: m.Band, Channel: m.Channel}
		if m.Found {
			bp.Peaks = []peaks.Record{m.Peak}
		}
		res.Bands = append(res.Bands, bp)
	}
	return res
}
