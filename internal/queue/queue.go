// Package queue implements the FIFO hand-off between a transport callback
// (producer) and a consumer goroutine.
//
// Design:
//   - One mutex guards the item list, the closed flag and the counters
//   - sync.Cond signals "not empty" to blocked consumers
//   - Push never blocks; Pop blocks until an item arrives or the queue is closed
//   - Optional depth bound with drop-oldest eviction
//
// Every operation takes the one mutex, so the observed history is a single
// linear order of pushes, pops and clears.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by PopContext once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Pushed    uint64
	Popped    uint64
	Dropped   uint64 // evicted by the depth bound or pushed after Close
	Cleared   uint64
	Depth     int
	HighWater int
}

// Option configures a Queue.
type Option func(*options)

type options struct {
	maxDepth int
	onDrop   func(any)
}

// WithMaxDepth bounds the queue. When full, Push evicts the oldest item.
// n <= 0 means unbounded (the default).
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithOnDrop installs a hook invoked (outside the lock) for every item the
// queue drops on its own: evictions by the depth bound and pushes after
// Close. Clear is requested by the caller and does not invoke it.
func WithOnDrop[T any](fn func(T)) Option {
	return func(o *options) {
		if fn == nil {
			return
		}
		o.onDrop = func(v any) { fn(v.(T)) }
	}
}

// Queue is a thread-safe FIFO of T.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond // signalled on push and close
	items  []T
	head   int // index of the oldest live item in items
	closed bool

	maxDepth int
	onDrop   func(any)

	pushed    uint64
	popped    uint64
	dropped   uint64
	cleared   uint64
	highWater int
}

// New creates an empty, open queue.
func New[T any](opts ...Option) *Queue[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	q := &Queue[T]{
		maxDepth: o.maxDepth,
		onDrop:   o.onDrop,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item at the tail and wakes one blocked consumer.
//
// Never blocks. Returns false if the queue is closed; the item is then
// handed to the drop hook and counted as dropped.
func (q *Queue[T]) Push(item T) bool {
	var evicted []T

	q.mu.Lock()
	if q.closed {
		q.dropped++
		q.mu.Unlock()
		q.drop(item)
		return false
	}

	if q.maxDepth > 0 {
		for q.lenLocked() >= q.maxDepth {
			evicted = append(evicted, q.shiftLocked())
			q.dropped++
		}
	}

	q.items = append(q.items, item)
	q.pushed++
	if n := q.lenLocked(); n > q.highWater {
		q.highWater = n
	}

	q.cond.Signal()
	q.mu.Unlock()

	for _, e := range evicted {
		q.drop(e)
	}
	return true
}

// TryPop removes and returns the head item without blocking.
// ok is false when the queue is empty.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		return item, false
	}
	q.popped++
	return q.shiftLocked(), true
}

// Pop removes and returns the head item, blocking while the queue is empty.
// ok is false only when the queue is closed and empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Re-check after every wake: spurious wake-ups and competing consumers
	for q.lenLocked() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.lenLocked() == 0 {
		return item, false
	}
	q.popped++
	return q.shiftLocked(), true
}

// PopContext is Pop with cancellation. It returns ctx.Err() when ctx is done
// before an item arrives, and ErrClosed when the queue is closed and empty.
func (q *Queue[T]) PopContext(ctx context.Context) (item T, err error) {
	// Wake every waiter on cancellation; each re-checks its own context.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return item, err
		}
		q.cond.Wait()
	}
	if q.lenLocked() == 0 {
		return item, ErrClosed
	}
	q.popped++
	return q.shiftLocked(), nil
}

// Clear discards every queued item and returns how many were dropped.
// Items pushed after Clear returns are retained.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.lenLocked()
	q.items = nil
	q.head = 0
	q.cleared += uint64(n)
	return n
}

// Close marks the queue closed and wakes every blocked consumer.
// Items already queued can still be popped. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pushed:    q.pushed,
		Popped:    q.popped,
		Dropped:   q.dropped,
		Cleared:   q.cleared,
		Depth:     q.lenLocked(),
		HighWater: q.highWater,
	}
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

// shiftLocked removes the head item. The backing array is compacted once
// the consumed prefix dominates, so a steady stream does not grow it.
func (q *Queue[T]) shiftLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 32 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}

func (q *Queue[T]) drop(item T) {
	if q.onDrop != nil {
		q.onDrop(item)
	}
}
