// Package wav writes RIFF/WAVE files for recorded segments.
//
// The writer emits a canonical 44-byte header and patches the RIFF and data
// sizes on every Flush, so a file that is flushed and synced is always a
// complete, readable WAV even if the process stops afterwards.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Format is the sample encoding.
type Format int

const (
	// Float32 is 32-bit IEEE float, WAVE_FORMAT_IEEE_FLOAT.
	Float32 Format = iota
	// PCM16 is signed 16-bit integer PCM.
	PCM16
)

const headerSize = 44

var errClosed = errors.New("wav: writer closed")

// Writer encodes interleaved float64 samples.
type Writer struct {
	w          io.WriteSeeker
	format     Format
	channels   int
	sampleRate int
	dataBytes  int64
	buf        []byte
	closed     bool
}

// NewWriter writes a provisional header to w and returns a Writer.
func NewWriter(w io.WriteSeeker, sampleRate, channels int, format Format) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav: invalid stream %d Hz x %d", sampleRate, channels)
	}
	if format != Float32 && format != PCM16 {
		return nil, fmt.Errorf("wav: unknown format %d", format)
	}
	wr := &Writer{w: w, format: format, channels: channels, sampleRate: sampleRate}
	if _, err := w.Write(wr.header()); err != nil {
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return wr, nil
}

func (w *Writer) bytesPerSample() int {
	if w.format == PCM16 {
		return 2
	}
	return 4
}

func (w *Writer) header() []byte {
	h := make([]byte, headerSize)
	bps := w.bytesPerSample()
	tag := uint16(3)
	if w.format == PCM16 {
		tag = 1
	}
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+w.dataBytes))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], tag)
	binary.LittleEndian.PutUint16(h[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(w.sampleRate*w.channels*bps))
	binary.LittleEndian.PutUint16(h[32:], uint16(w.channels*bps))
	binary.LittleEndian.PutUint16(h[34:], uint16(8*bps))
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(w.dataBytes))
	return h
}

// Write appends interleaved samples. len(samples) must be a multiple of
// the channel count. PCM16 output is clipped to [-1, 1].
func (w *Writer) Write(samples []float64) error {
	if w.closed {
		return errClosed
	}
	if len(samples)%w.channels != 0 {
		return fmt.Errorf("wav: %d samples not divisible by %d channels", len(samples), w.channels)
	}
	bps := w.bytesPerSample()
	need := len(samples) * bps
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	b := w.buf[:need]
	for i, v := range samples {
		if w.format == PCM16 {
			v = math.Max(-1, math.Min(1, v))
			binary.LittleEndian.PutUint16(b[2*i:], uint16(int16(math.Round(v*math.MaxInt16))))
		} else {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(float32(v)))
		}
	}
	n, err := w.w.Write(b)
	w.dataBytes += int64(n)
	if err != nil {
		return fmt.Errorf("wav: write samples: %w", err)
	}
	return nil
}

// Frames returns the number of sample frames written.
func (w *Writer) Frames() int64 {
	return w.dataBytes / int64(w.channels*w.bytesPerSample())
}

// Flush rewrites the header with the current sizes and returns the write
// position to the end of the data. If the destination has a Sync method it
// is called afterwards.
func (w *Writer) Flush() error {
	if w.closed {
		return errClosed
	}
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek header: %w", err)
	}
	if _, err := w.w.Write(w.header()); err != nil {
		return fmt.Errorf("wav: rewrite header: %w", err)
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("wav: seek end: %w", err)
	}
	if s, ok := w.w.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("wav: sync: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the destination if it is an io.Closer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	err := w.Flush()
	w.closed = true
	if c, ok := w.w.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
