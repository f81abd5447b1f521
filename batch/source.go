package batch

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mjibson/go-dsp/wav"
)

// Source yields interleaved PCM samples of one file.
type Source interface {
	SampleRate() float64
	Channels() int
	// Read fills dst with interleaved samples and returns how many were
	// read. It returns io.EOF once the file is exhausted.
	Read(dst []float64) (int, error)
	Close() error
}

type wavSource struct {
	f   *os.File
	dec *wav.Wav
}

func openWAV(path string) (*wavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := wav.New(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("batch: decode %s: %w", path, err)
	}
	if dec.NumChannels == 0 || dec.SampleRate == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("batch: %s: empty wav header", path)
	}
	// Integer PCM only; float WAV goes through ffmpeg.
	if dec.AudioFormat != 1 {
		_ = f.Close()
		return nil, fmt.Errorf("batch: %s: wav format %d is not integer PCM", path, dec.AudioFormat)
	}
	return &wavSource{f: f, dec: dec}, nil
}

func (s *wavSource) SampleRate() float64 { return float64(s.dec.SampleRate) }

func (s *wavSource) Channels() int { return int(s.dec.NumChannels) }

func (s *wavSource) Read(dst []float64) (int, error) {
	in, err := s.dec.ReadFloats(len(dst))
	for i, v := range in {
		dst[i] = float64(v)
	}
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		err = io.EOF
	case err == nil && len(in) == 0:
		err = io.EOF
	}
	return len(in), err
}

func (s *wavSource) Close() error { return s.f.Close() }

// ffmpegSource decodes any container ffmpeg understands into f64le PCM.
type ffmpegSource struct {
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	out      io.ReadCloser
	stderr   bytes.Buffer
	rate     float64
	channels int
	raw      []byte
}

func openFFmpeg(ctx context.Context, bin, path string, rate float64, channels int) (*ffmpegSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(int(math.Round(rate))),
		"pipe:1",
	}
	s := &ffmpegSource{cmd: exec.CommandContext(ctx, bin, args...), cancel: cancel, rate: rate, channels: channels}
	s.cmd.Stderr = &s.stderr
	out, err := s.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	s.out = out
	if err := s.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("batch: start %s: %w", bin, err)
	}
	return s, nil
}

func (s *ffmpegSource) SampleRate() float64 { return s.rate }

func (s *ffmpegSource) Channels() int { return s.channels }

func (s *ffmpegSource) Read(dst []float64) (int, error) {
	if cap(s.raw) < 8*len(dst) {
		s.raw = make([]byte, 8*len(dst))
	}
	raw := s.raw[:8*len(dst)]
	n, err := io.ReadFull(s.out, raw)
	samples := n / 8
	for i := range samples {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return samples, werr
		}
		return samples, io.EOF
	}
	return samples, err
}

func (s *ffmpegSource) wait() error {
	if err := s.cmd.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if msg != "" {
			return fmt.Errorf("batch: ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("batch: ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegSource) Close() error {
	s.cancel()
	if s.cmd.ProcessState == nil {
		_ = s.cmd.Wait()
	}
	return nil
}
