package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/config"
	"github.com/cwbudde/lfnwatch/dsp/buffer"
	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
	"github.com/cwbudde/lfnwatch/dsp/filter/design"
	"github.com/cwbudde/lfnwatch/dsp/transform"
	"github.com/cwbudde/lfnwatch/internal/logging"
	"github.com/cwbudde/lfnwatch/measure/alert"
	"github.com/cwbudde/lfnwatch/measure/peaks"
	"github.com/cwbudde/lfnwatch/pipeline"
)

// dropLogEvery rate-limits overrun warnings: the first drop and every
// dropLogEvery-th after it are logged.
const dropLogEvery = 100

// Summary is reported by every session that ran, however it ended.
type Summary struct {
	SessionID string
	State     State
	Started   time.Time
	// Elapsed is wall-clock time from capture start to the terminal state.
	Elapsed time.Duration
	// Recorded is the audio duration accepted from the device.
	Recorded        time.Duration
	BlocksAnalyzed  int64
	DroppedBlocks   int64
	DiscardedBlocks int64
	// PeakBuffers is the most block buffers held at once, queued or in work.
	PeakBuffers       int64
	FinalizedSegments int
	FailedSegments    int
	Segments          []Segment
	Alerts            int64
	Backend           string
	Fallback          bool
	// Recovered lists problems that did not stop the session.
	Recovered []error
	// Err is the fatal error, if any.
	Err error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithID sets the session identifier instead of a random UUID.
func WithID(id string) SessionOption {
	return func(sess *Session) {
		if id != "" {
			sess.id = id
		}
	}
}

// WithStore sets where segments are written. Without a store and with an
// empty OutputDir the session only monitors.
func WithStore(s SegmentStore) SessionOption {
	return func(sess *Session) { sess.store = s }
}

// WithSegmentSink adds a receiver for segment metadata.
func WithSegmentSink(s SegmentSink) SessionOption {
	return func(sess *Session) {
		if s != nil {
			sess.segmentSinks = append(sess.segmentSinks, s)
		}
	}
}

// WithResultSink adds a receiver for analysis results.
func WithResultSink(s pipeline.ResultSink) SessionOption {
	return func(sess *Session) { sess.pipelineOpts = append(sess.pipelineOpts, pipeline.WithResultSink(s)) }
}

// WithAlertSink adds a receiver for alert events.
func WithAlertSink(s pipeline.AlertSink) SessionOption {
	return func(sess *Session) { sess.pipelineOpts = append(sess.pipelineOpts, pipeline.WithAlertSink(s)) }
}

// WithTransformOptions passes options to the session's transform dispatcher.
func WithTransformOptions(opts ...transform.Option) SessionOption {
	return func(sess *Session) { sess.transformOpts = append(sess.transformOpts, opts...) }
}

// WithLogger sets the session logger.
func WithLogger(l logging.Logger) SessionOption {
	return func(sess *Session) { sess.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(sess *Session) {
		if now != nil {
			sess.now = now
		}
	}
}

// Session is one capture run. It owns its device, queue, dispatcher and
// segment files, and releases all of them before Run returns.
type Session struct {
	id            string
	cfg           config.Config
	device        Device
	store         SegmentStore
	segmentSinks  []SegmentSink
	pipelineOpts  []pipeline.Option
	transformOpts []transform.Option
	highpass      []biquad.Coefficients
	logger        logging.Logger
	now           func() time.Time

	machine  machine
	stopOnce sync.Once
	stopCh   chan struct{}
	runOnce  sync.Once
}

// NewSession validates cfg and prepares a session on device. A nil device
// is ErrDeviceUnavailable; invalid configuration is config.ErrConfigInvalid.
func NewSession(cfg config.Config, device Device, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no device", ErrDeviceUnavailable)
	}
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		device: device,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	if cfg.HighPassHz > 0 {
		hp, err := design.ButterworthHP(cfg.HighPassHz, 2, cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfigInvalid, err)
		}
		s.highpass = hp
	}
	if s.store == nil && cfg.OutputDir != "" {
		s.store = NewDirStore(cfg.OutputDir, int(math.Round(cfg.SampleRate)), cfg.Channels)
	}
	s.logger = logging.OrGlobal(s.logger).WithFields(logging.Fields{"component": "capture", "session": s.id})
	s.machine.logger = s.logger
	return s, nil
}

// ID returns the session identifier used as the source of its results.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.machine.current() }

// Stop asks a running session to stop. It returns immediately; Run performs
// the drain and finalization.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type stopReason int

const (
	stopRequested stopReason = iota
	stopLimit
	stopDeviceError
)

// Run captures until ctx is cancelled, Stop is called, the configured total
// duration has been recorded, or the device fails. It may be called once.
//
// Fatal errors (device unavailable, stream interrupted) are returned and also
// set on the summary. Recoverable problems are listed in Summary.Recovered.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	ran := false
	s.runOnce.Do(func() { ran = true })
	if !ran {
		return Summary{SessionID: s.id, State: s.State()}, errors.New("capture: session already ran")
	}

	sum := Summary{SessionID: s.id}
	fatal := func(err error) (Summary, error) {
		_ = s.machine.transition(StateFailed)
		sum.State = StateFailed
		sum.Err = err
		s.logger.Error(err, "session failed to start")
		return sum, err
	}

	aopts := []analysis.Option{
		analysis.WithReference(s.cfg.ReferenceAmplitude),
		analysis.WithFloor(s.cfg.FloorDB),
		analysis.WithChannelPolicy(s.cfg.ChannelPolicy),
		analysis.WithNormalize(s.cfg.Normalize),
		analysis.WithLogger(s.logger),
		analysis.WithTransformOptions(append([]transform.Option{transform.WithAcceleration(s.cfg.Acceleration)}, s.transformOpts...)...),
	}
	if s.cfg.HopSize > 0 {
		aopts = append(aopts, analysis.WithHop(s.cfg.HopSize))
	}
	analyzer, err := analysis.NewAnalyzer(s.cfg.FrameSize, aopts...)
	if err != nil {
		return fatal(err)
	}
	defer analyzer.Close()

	pipe, err := pipeline.New(analyzer, append([]pipeline.Option{
		pipeline.WithRanges(s.cfg.Ranges()...),
		pipeline.WithThresholds(s.cfg.Thresholds()),
		pipeline.WithExtractor(peaks.NewExtractor(
			peaks.WithMaxPeaks(s.cfg.MaxPeaks),
			peaks.WithMinSpacingHz(s.cfg.MinPeakSpacingHz),
		)),
		pipeline.WithCooldown(alert.NewCooldown(s.cfg.AlertCooldown)),
		pipeline.WithLogger(s.logger),
	}, s.pipelineOpts...)...)
	if err != nil {
		return fatal(err)
	}

	policy, err := ParseDropPolicy(s.cfg.DropPolicy)
	if err != nil {
		return fatal(err)
	}
	queue := NewQueue[*pendingBlock](s.cfg.QueueCapacity, policy)
	limit := int64(math.Round(s.cfg.TotalDuration.Seconds() * s.cfg.SampleRate))
	start := s.now()
	pool := buffer.NewPool(s.cfg.BlockFrames(), s.cfg.Channels)
	// Queued blocks, the one filling and the one in the worker.
	pool.Reserve(s.cfg.QueueCapacity + 2)
	asm := NewAssembler(s.id, s.cfg.SampleRate, s.cfg.Channels, s.cfg.BlockFrames(), limit, start, queue, pool)

	rate, err := s.device.Open(StreamParams{SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}, asm.Write)
	if err != nil {
		return fatal(fmt.Errorf("%w: open: %w", ErrDeviceUnavailable, err))
	}
	if math.Abs(rate-s.cfg.SampleRate) > 0.5 {
		_ = s.device.Close()
		return fatal(fmt.Errorf("%w: device runs at %v Hz, configured %v Hz", ErrDeviceUnavailable, rate, s.cfg.SampleRate))
	}

	rec := s.newRecorder()
	sum.Started = start

	if err := s.device.Start(); err != nil {
		_ = s.device.Close()
		return fatal(fmt.Errorf("%w: start: %w", ErrDeviceUnavailable, err))
	}
	if err := s.machine.transition(StateCapturing); err != nil {
		return fatal(err)
	}
	s.logger.Info("capture started", logging.Fields{
		"rate": s.cfg.SampleRate, "channels": s.cfg.Channels, "block": s.cfg.BlockDuration.String(),
		"segment": s.cfg.SegmentDuration.String(), "total": s.cfg.TotalDuration.String(), "backend": pipe.Backend(),
	})

	// Sinks outlive ctx so the drain can still hand off results, but they
	// are cancelled DrainTimeout after the stop request.
	sinkCtx, sinkCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer sinkCancel()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		reason    = stopRequested
		devErr    error
		drainStop *time.Timer
		watched   = make(chan struct{})
	)
	go func() {
		defer close(watched)
		select {
		case <-runCtx.Done():
		case <-s.stopCh:
		case <-asm.Done():
			reason = stopLimit
		case err, ok := <-s.device.Errors():
			if ok {
				reason, devErr = stopDeviceError, err
			}
		}
		drainStop = time.AfterFunc(s.cfg.DrainTimeout, sinkCancel)
		cancel()
	}()

	w := &worker{s: s, pipe: pipe, rec: rec, asm: asm, queue: queue, ctx: sinkCtx}
	for runCtx.Err() == nil {
		p, err := queue.Pop(runCtx)
		if err != nil {
			break
		}
		w.process(p)
	}
	<-watched
	defer drainStop.Stop()

	// STOPPING: no new device data, drain what is buffered, close the segment.
	_ = s.machine.transition(StateStopping)
	if err := s.device.Stop(); err != nil {
		s.logger.Warn("device stop failed", logging.Fields{"error": err.Error()})
	}
	asm.Flush()
	queue.Close()
	sum.DiscardedBlocks = w.drain()
	rec.finalize(sinkCtx)
	if err := s.device.Close(); err != nil {
		s.logger.Warn("device close failed", logging.Fields{"error": err.Error()})
	}

	final := StateStopped
	if reason == stopDeviceError {
		final = StateFailed
		sum.Err = fmt.Errorf("%w: %w", ErrStreamInterrupted, devErr)
	}
	_ = s.machine.transition(final)

	st := pipe.Stats()
	sum.State = final
	sum.Elapsed = s.now().Sub(start)
	sum.Recorded = framesDuration(asm.Frames(), s.cfg.SampleRate)
	sum.BlocksAnalyzed = st.Blocks
	sum.DroppedBlocks = queue.Drops()
	sum.PeakBuffers = pool.Peak()
	sum.Alerts = st.Alerts
	sum.Segments = rec.segments
	sum.FinalizedSegments, sum.FailedSegments = rec.counts()
	sum.Backend = pipe.Backend()
	sum.Fallback = pipe.FellBack()
	sum.Recovered = s.recovered(sum, rec, analyzer)

	fields := logging.Fields{
		"state": final.String(), "elapsed": sum.Elapsed.String(), "blocks": sum.BlocksAnalyzed,
		"dropped": sum.DroppedBlocks, "finalized": sum.FinalizedSegments, "failed": sum.FailedSegments,
		"peak_buffers": sum.PeakBuffers,
	}
	if sum.Err != nil {
		s.logger.Error(sum.Err, "session ended", fields)
	} else {
		s.logger.Info("session ended", fields)
	}
	return sum, sum.Err
}

func (s *Session) recovered(sum Summary, rec *recorder, analyzer *analysis.Analyzer) []error {
	var out []error
	if fell, cause := analyzer.Dispatcher().FellBack(); fell && cause != nil {
		out = append(out, cause)
	}
	if sum.DroppedBlocks > 0 {
		out = append(out, fmt.Errorf("%w: %d blocks dropped", ErrBufferOverrun, sum.DroppedBlocks))
	}
	out = append(out, rec.failures...)
	return out
}

func (s *Session) newRecorder() *recorder {
	r := &recorder{
		store:      s.store,
		sampleRate: s.cfg.SampleRate,
		target:     s.cfg.SegmentDuration,
		perSegment: s.cfg.BlocksPerSegment(),
		remaining:  s.cfg.TotalDuration,
		bounded:    s.cfg.TotalDuration > 0,
		sinks:      s.segmentSinks,
		logger:     s.logger,
	}
	if len(s.highpass) > 0 {
		r.highpass = biquad.NewInterleaved(s.highpass, s.cfg.Channels)
	}
	r.onRotate = func(rotating bool) {
		switch cur := s.machine.current(); {
		case rotating && cur == StateCapturing:
			_ = s.machine.transition(StateSegmentRotating)
		case !rotating && cur == StateSegmentRotating:
			_ = s.machine.transition(StateCapturing)
		}
	}
	return r
}

// worker runs the per-block path: analysis, sinks, segment append.
type worker struct {
	s         *Session
	pipe      *pipeline.Pipeline
	rec       *recorder
	asm       *Assembler
	queue     *Queue[*pendingBlock]
	ctx       context.Context
	lastDrops int64
}

func (w *worker) process(p *pendingBlock) {
	defer w.asm.Release(p)

	if _, _, err := w.pipe.Process(w.ctx, p.block); err != nil {
		w.s.logger.Error(err, "block analysis failed", logging.Fields{"block": p.block.Index})
	}
	if w.rec.store != nil {
		w.rec.append(w.ctx, p.block)
	}
	w.reportDrops()
}

func (w *worker) reportDrops() {
	drops := w.queue.Drops()
	if drops == w.lastDrops {
		return
	}
	for n := w.lastDrops + 1; n <= drops; n++ {
		if n == 1 || n%dropLogEvery == 0 {
			w.s.logger.Warn("block queue full, block dropped", logging.Fields{
				"dropped": drops, "policy": w.s.cfg.DropPolicy, "error": ErrBufferOverrun.Error(),
			})
			break
		}
	}
	w.lastDrops = drops
}

// drain processes queued blocks until the queue is empty or the sink
// context has expired, and returns how many blocks were discarded.
func (w *worker) drain() int64 {
	var discarded int64
	for {
		p, ok := w.queue.TryPop()
		if !ok {
			break
		}
		if w.ctx.Err() != nil {
			discarded++
			w.asm.Release(p)
			continue
		}
		w.process(p)
	}
	if discarded > 0 {
		w.s.logger.Warn("drain timeout, queued blocks discarded", logging.Fields{"discarded": discarded})
	}
	return discarded
}
