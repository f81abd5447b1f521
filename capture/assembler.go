package capture

import (
	"sync"
	"time"

	"github.com/cwbudde/lfnwatch/analysis"
	"github.com/cwbudde/lfnwatch/dsp/buffer"
)

// pendingBlock is a queued block together with the pooled buffer backing
// its samples.
type pendingBlock struct {
	block *analysis.AudioBlock
	buf   *buffer.Buffer
}

// Assembler cuts the device stream into fixed-size blocks.
//
// Write runs on the audio callback path. It only copies samples into a
// pooled buffer and pushes completed blocks to the queue; it never waits and
// never logs. When a frame limit is set, the block that reaches it is
// truncated, emitted, and Done is closed; later input is ignored.
type Assembler struct {
	mu          sync.Mutex
	source      string
	sampleRate  float64
	channels    int
	blockFrames int
	blockDur    time.Duration
	limitFrames int64
	start       time.Time

	pool  *buffer.Pool
	queue *Queue[*pendingBlock]

	cur      *buffer.Buffer
	fill     int
	index    int
	accepted int64
	finished bool
	done     chan struct{}
}

// NewAssembler returns an assembler emitting blocks of blockFrames frames,
// drawn from pool, which must hand out buffers of that shape.
// limitFrames of zero means unbounded. start is the wall-clock time of the
// first sample; block timestamps are derived from it by sample count.
func NewAssembler(source string, sampleRate float64, channels, blockFrames int, limitFrames int64,
	start time.Time, queue *Queue[*pendingBlock], pool *buffer.Pool,
) *Assembler {
	return &Assembler{
		source:      source,
		sampleRate:  sampleRate,
		channels:    channels,
		blockFrames: blockFrames,
		blockDur:    framesDuration(int64(blockFrames), sampleRate),
		limitFrames: limitFrames,
		start:       start,
		pool:        pool,
		queue:       queue,
		done:        make(chan struct{}),
	}
}

// Write accepts interleaved samples from the device. A trailing partial
// frame is ignored.
func (a *Assembler) Write(in []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frames := len(in) / a.channels
	pos := 0
	for frames > 0 && !a.finished {
		if a.cur == nil {
			a.cur = a.pool.Acquire()
			a.fill = 0
		}
		space := a.blockFrames - a.fill
		if a.limitFrames > 0 {
			space = int(min(int64(space), a.limitFrames-a.accepted))
		}
		n := a.cur.CopyFloat32(a.fill, in[pos*a.channels:(pos+min(space, frames))*a.channels])
		a.fill += n
		a.accepted += int64(n)
		pos += n
		frames -= n

		switch {
		case a.limitFrames > 0 && a.accepted >= a.limitFrames:
			a.emit()
			a.finish()
		case a.fill == a.blockFrames:
			a.emit()
		}
	}
}

// Flush emits the buffered partial block, if any. Call it after the device
// has stopped delivering data.
func (a *Assembler) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur != nil && a.fill > 0 {
		a.emit()
	}
	if a.cur != nil {
		a.pool.Put(a.cur)
		a.cur = nil
	}
}

// Done is closed once the frame limit has been reached.
func (a *Assembler) Done() <-chan struct{} { return a.done }

// Frames returns the number of frames accepted so far.
func (a *Assembler) Frames() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accepted
}

// Release returns a processed or discarded block's buffer to the pool.
func (a *Assembler) Release(p *pendingBlock) {
	if p != nil {
		a.pool.Put(p.buf)
	}
}

func (a *Assembler) finish() {
	if !a.finished {
		a.finished = true
		close(a.done)
	}
}

func (a *Assembler) emit() {
	buf := a.cur
	buf.SetFrames(a.fill)
	first := a.accepted - int64(a.fill)

	p := &pendingBlock{
		block: &analysis.AudioBlock{
			Source:     a.source,
			Index:      a.index,
			Samples:    buf.Samples(),
			SampleRate: a.sampleRate,
			Channels:   a.channels,
			Timestamp:  a.start.Add(framesDuration(first, a.sampleRate)),
			Duration:   a.blockDur,
		},
		buf: buf,
	}
	a.index++
	a.cur = nil
	a.fill = 0

	if old, dropped := a.queue.Push(p); dropped {
		a.Release(old)
	}
}
