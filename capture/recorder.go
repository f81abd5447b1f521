package capture

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/dsp/filter/biquad"
	"github.com/cwbudde/lfnwatch/internal/logging"
)

// recorder appends blocks to the active segment and rotates segments on
// block boundaries. It is used by the session worker only.
type recorder struct {
	store       SegmentStore
	sampleRate  float64
	target      time.Duration
	perSegment  int
	remaining   time.Duration // bounded sessions; zero when unbounded
	bounded     bool
	highpass    *biquad.Interleaved
	sinks       []SegmentSink
	logger      logging.Logger
	onRotate    func(rotating bool)
	scratch     []float64
	cur         *Segment
	file        SegmentFile
	blocksInCur int
	next        int
	segments    []Segment
	failures    []error
}

// append writes block to the open segment, opening one first if needed, and
// rotates when the segment has reached its block count.
func (r *recorder) append(ctx context.Context, block *analysis.AudioBlock) {
	samples := block.Samples
	if r.highpass != nil {
		r.scratch = append(r.scratch[:0], samples...)
		r.highpass.ProcessInterleaved(r.scratch)
		samples = r.scratch
	}

	if r.cur == nil && !r.open(ctx, block.Timestamp) {
		return
	}

	if err := r.write(samples); err != nil {
		r.fail(ctx, fmt.Errorf("%w: segment %d: %w", ErrSegmentWrite, r.cur.Index, err))
		// Keep the block: it goes to the replacement segment.
		if !r.open(ctx, block.Timestamp) {
			return
		}
		if err := r.write(samples); err != nil {
			r.fail(ctx, fmt.Errorf("%w: segment %d: %w", ErrSegmentWrite, r.cur.Index, err))
			return
		}
	}

	r.cur.Frames += int64(block.Frames())
	r.cur.Duration = framesDuration(r.cur.Frames, r.sampleRate)
	r.blocksInCur++
	if r.blocksInCur >= r.perSegment {
		r.rotate(ctx)
	}
}

func framesDuration(frames int64, rate float64) time.Duration {
	return time.Duration(math.Round(float64(frames) * float64(time.Second) / rate))
}

// write tries twice.
func (r *recorder) write(samples []float64) error {
	err := r.file.Write(samples)
	if err == nil {
		return nil
	}
	r.logger.Warn("segment write failed, retrying", logging.Fields{"segment": r.cur.Index, "error": err.Error()})
	return r.file.Write(samples)
}

func (r *recorder) open(ctx context.Context, start time.Time) bool {
	idx := r.next
	r.next++

	target := r.target
	if r.bounded {
		elapsed := time.Duration(0)
		for _, s := range r.segments {
			elapsed += s.Duration
		}
		target = min(target, max(r.remaining-elapsed, 0))
	}
	seg := &Segment{Index: idx, StartTime: start, TargetDuration: target, Status: SegmentOpen}

	f, err := r.store.Create(idx, start)
	if err != nil {
		r.logger.Warn("segment create failed, retrying", logging.Fields{"segment": idx, "error": err.Error()})
		f, err = r.store.Create(idx, start)
	}
	if err != nil {
		r.cur = seg
		r.fail(ctx, fmt.Errorf("%w: create segment %d: %w", ErrSegmentWrite, idx, err))
		return false
	}

	seg.Path = f.Path()
	r.cur, r.file, r.blocksInCur = seg, f, 0
	r.logger.Info("segment opened", logging.Fields{"segment": idx, "path": seg.Path, "target": target.String()})
	return true
}

func (r *recorder) rotate(ctx context.Context) {
	if r.onRotate != nil {
		r.onRotate(true)
	}
	r.cur.Status = SegmentRotating
	r.finalize(ctx)
	if r.onRotate != nil {
		r.onRotate(false)
	}
}

// finalize flushes and closes the open segment. It is a no-op without one.
func (r *recorder) finalize(ctx context.Context) {
	if r.cur == nil {
		return
	}
	err := r.file.Flush()
	if err != nil {
		r.logger.Warn("segment flush failed, retrying", logging.Fields{"segment": r.cur.Index, "error": err.Error()})
		err = r.file.Flush()
	}
	if err != nil {
		r.fail(ctx, fmt.Errorf("%w: flush segment %d: %w", ErrSegmentWrite, r.cur.Index, err))
		return
	}
	if err := r.file.Close(); err != nil {
		r.fail(ctx, fmt.Errorf("%w: close segment %d: %w", ErrSegmentWrite, r.cur.Index, err))
		return
	}
	r.cur.Status = SegmentFinalized
	r.logger.Info("segment finalized", logging.Fields{
		"segment": r.cur.Index, "path": r.cur.Path, "duration": r.cur.Duration.String(),
	})
	r.done(ctx)
}

// fail marks the open segment FAILED and releases its file.
func (r *recorder) fail(ctx context.Context, err error) {
	if r.file != nil {
		_ = r.file.Close()
	}
	r.cur.Status = SegmentFailed
	r.cur.Err = err
	r.failures = append(r.failures, err)
	r.logger.Error(err, "segment failed", logging.Fields{"segment": r.cur.Index, "path": r.cur.Path})
	r.done(ctx)
}

func (r *recorder) done(ctx context.Context) {
	seg := *r.cur
	r.segments = append(r.segments, seg)
	r.cur, r.file = nil, nil
	for _, s := range r.sinks {
		if err := s.HandleSegment(ctx, seg); err != nil {
			r.logger.Error(err, "segment sink failed", logging.Fields{"segment": seg.Index})
		}
	}
}

func (r *recorder) counts() (finalized, failed int) {
	for _, s := range r.segments {
		switch s.Status {
		case SegmentFinalized:
			finalized++
		case SegmentFailed:
			failed++
		}
	}
	return finalized, failed
}
