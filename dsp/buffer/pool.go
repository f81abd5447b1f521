package buffer

import (
	"sync"
	"sync/atomic"
)

// Pool hands out buffers of one shape and tracks how many are checked out.
// Returned buffers stay on a free list until reused.
type Pool struct {
	frames   int
	channels int

	mu          sync.Mutex
	free        []*Buffer
	outstanding atomic.Int64
	peak        atomic.Int64
}

// NewPool returns a pool of frames x channels buffers.
func NewPool(frames, channels int) *Pool {
	return &Pool{frames: max(frames, 0), channels: max(channels, 1)}
}

// Reserve allocates buffers until n are free, so later Acquire and Get
// calls do not allocate while at most n are checked out.
func (p *Pool) Reserve(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) < n {
		p.free = append(p.free, New(p.frames, p.channels))
	}
}

// Acquire returns a buffer of the pool's shape whose contents are
// unspecified. Use it when every sample is overwritten. Return it with Put.
func (p *Pool) Acquire() *Buffer {
	p.mu.Lock()
	var b *Buffer
	if n := len(p.free); n > 0 {
		b = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if b == nil {
		b = New(p.frames, p.channels)
	}
	b.samples = b.samples[:p.frames*p.channels]

	n := p.outstanding.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return b
}

// Get returns a zeroed buffer of the pool's shape. Return it with Put.
func (p *Pool) Get() *Buffer {
	b := p.Acquire()
	clear(b.samples)
	return b
}

// Put returns b to the pool. Buffers of another shape are dropped.
func (p *Pool) Put(b *Buffer) {
	if b == nil {
		return
	}
	p.outstanding.Add(-1)
	if b.channels != p.channels || cap(b.samples) < p.frames*p.channels {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// Outstanding returns the number of buffers obtained by Get and not yet Put.
func (p *Pool) Outstanding() int64 { return p.outstanding.Load() }

// Peak returns the highest Outstanding count seen.
func (p *Pool) Peak() int64 { return p.peak.Load() }
