package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/lfnwatch/internal/wav"
)

// SegmentStatus is the lifecycle state of a recording segment.
type SegmentStatus int

const (
	SegmentOpen SegmentStatus = iota
	SegmentRotating
	SegmentFinalized
	SegmentFailed
)

func (s SegmentStatus) String() string {
	switch s {
	case SegmentOpen:
		return "OPEN"
	case SegmentRotating:
		return "ROTATING"
	case SegmentFinalized:
		return "FINALIZED"
	case SegmentFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("SegmentStatus(%d)", int(s))
	}
}

// MarshalText encodes the status name.
func (s SegmentStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Segment is the metadata of one recording segment.
type Segment struct {
	// Index starts at 0 and increases by one per segment, failed ones included.
	Index          int
	Path           string
	StartTime      time.Time
	TargetDuration time.Duration
	// Duration is the audio actually written.
	Duration time.Duration
	Frames   int64
	Status   SegmentStatus
	Err      error
}

// SegmentSink receives segment metadata once a segment is finalized or
// has failed.
type SegmentSink interface {
	HandleSegment(ctx context.Context, s Segment) error
}

// SegmentSinkFunc adapts a function to SegmentSink.
type SegmentSinkFunc func(ctx context.Context, s Segment) error

// HandleSegment calls f.
func (f SegmentSinkFunc) HandleSegment(ctx context.Context, s Segment) error { return f(ctx, s) }

// SegmentFile is an open segment destination.
type SegmentFile interface {
	Path() string
	Write(samples []float64) error
	// Flush makes everything written so far durable.
	Flush() error
	Close() error
}

// SegmentStore creates segment files.
type SegmentStore interface {
	Create(index int, start time.Time) (SegmentFile, error)
}

// SegmentName returns the file name of segment index (0-based) started at
// start: recording_segment_001_20240131_235959.wav for index 0.
func SegmentName(index int, start time.Time) string {
	return fmt.Sprintf("recording_segment_%03d_%s.wav", index+1, start.Format("20060102_150405"))
}

// DirStore writes segments as 32-bit float WAV files into a directory.
type DirStore struct {
	Dir        string
	SampleRate int
	Channels   int
	Format     wav.Format
}

// NewDirStore returns a store for dir. The directory is created on first use.
func NewDirStore(dir string, sampleRate, channels int) *DirStore {
	return &DirStore{Dir: dir, SampleRate: sampleRate, Channels: channels, Format: wav.Float32}
}

// Create opens a new segment file.
func (s *DirStore) Create(index int, start time.Time) (SegmentFile, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, SegmentName(index, start))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := wav.NewWriter(f, s.SampleRate, s.Channels, s.Format)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &wavFile{path: path, w: w}, nil
}

type wavFile struct {
	path string
	w    *wav.Writer
}

func (f *wavFile) Path() string { return f.path }

func (f *wavFile) Write(samples []float64) error { return f.w.Write(samples) }

func (f *wavFile) Flush() error { return f.w.Flush() }

func (f *wavFile) Close() error { return f.w.Close() }
