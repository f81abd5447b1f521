package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// DropPolicy selects which block is discarded when the queue is full.
type DropPolicy int

const (
	// DropOldest discards the oldest queued block to make room.
	DropOldest DropPolicy = iota
	// DropNewest discards the incoming block.
	DropNewest
)

func (p DropPolicy) String() string {
	switch p {
	case DropOldest:
		return "oldest"
	case DropNewest:
		return "newest"
	default:
		return fmt.Sprintf("DropPolicy(%d)", int(p))
	}
}

// ParseDropPolicy converts "oldest" or "newest".
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch s {
	case "oldest", "":
		return DropOldest, nil
	case "newest":
		return DropNewest, nil
	default:
		return 0, fmt.Errorf("capture: unknown drop policy %q", s)
	}
}

// Queue is a fixed-capacity FIFO between the capture callback and the
// worker. Push never waits for space; when the queue is full one item is
// dropped according to the policy and counted.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	n      int
	closed bool
	policy DropPolicy
	notify chan struct{}
	drops  atomic.Int64
}

// NewQueue returns a queue holding up to capacity items (minimum 1).
func NewQueue[T any](capacity int, policy DropPolicy) *Queue[T] {
	return &Queue[T]{
		items:  make([]T, max(capacity, 1)),
		policy: policy,
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues v. If an item had to be discarded it is returned with
// dropped set, so the caller can release its resources. Pushing to a closed
// queue drops v.
func (q *Queue[T]) Push(v T) (discarded T, dropped bool) {
	q.mu.Lock()
	switch {
	case q.closed:
		discarded, dropped = v, true
	case q.n < len(q.items):
		q.items[(q.head+q.n)%len(q.items)] = v
		q.n++
	case q.policy == DropNewest:
		discarded, dropped = v, true
	default:
		discarded, dropped = q.items[q.head], true
		q.items[q.head] = v
		q.head = (q.head + 1) % len(q.items)
	}
	q.mu.Unlock()

	if dropped {
		q.drops.Add(1)
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return discarded, dropped
}

// TryPop dequeues the oldest item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.n--
	return v, true
}

// Pop waits for an item. It returns ctx.Err() on cancellation and
// ErrQueueClosed once the queue is closed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			var zero T
			return zero, ErrQueueClosed
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap returns the capacity.
func (q *Queue[T]) Cap() int { return len(q.items) }

// Drops returns how many items have been discarded.
func (q *Queue[T]) Drops() int64 { return q.drops.Load() }

// Close stops accepting items and wakes waiting consumers. Queued items
// remain available to TryPop and Pop.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
