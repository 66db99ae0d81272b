// Package intake implements an unbounded FIFO queue with any number of
// concurrent producers and a single consumer.
package intake

import (
	"sync/atomic"

	"github.com/creachadair/mds/queue"
)

// A Queue is an unbounded multi-producer single-consumer FIFO queue.
//
// Producers push onto a lock-free stack. The consumer takes the whole stack
// in one swap, restores arrival order, and moves the values into a queue it
// owns, so producers never contend with the consumer for a lock.
type Queue[T any] struct {
	in atomic.Pointer[node[T]] // most recent arrival first

	// Consumer-owned.
	out  *queue.Queue[T]
	flip []T // scratch for restoring arrival order
}

type node[T any] struct {
	v    T
	next *node[T]
}

// New constructs an empty queue. The size hint is the number of values the
// consumer expects to transfer at once; it may be zero.
func New[T any](sizeHint int) *Queue[T] {
	return &Queue[T]{out: queue.New[T](), flip: make([]T, 0, max(sizeHint, 0))}
}

// Push adds v to the end of q. It is safe for concurrent use by multiple
// goroutines and does not block.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{v: v}
	for {
		n.next = q.in.Load()
		if q.in.CompareAndSwap(n.next, n) {
			return
		}
	}
}

// Pop removes and returns the value at the front of q, and reports whether
// there was one. Only the consumer may call Pop.
func (q *Queue[T]) Pop() (T, bool) {
	if q.out.Len() == 0 {
		q.transfer()
	}
	return q.out.Pop()
}

// IsEmpty reports whether q has no values. Only the consumer may call
// IsEmpty.
func (q *Queue[T]) IsEmpty() bool {
	return q.out.Len() == 0 && q.in.Load() == nil
}

// Clear discards all values in q. Only the consumer may call Clear.
func (q *Queue[T]) Clear() {
	q.in.Store(nil)
	q.out.Clear()
}

func (q *Queue[T]) transfer() {
	n := q.in.Swap(nil)
	if n == nil {
		return
	}
	for ; n != nil; n = n.next {
		q.flip = append(q.flip, n.v)
	}
	for i := len(q.flip) - 1; i >= 0; i-- {
		q.out.Add(q.flip[i])
	}
	clear(q.flip)
	q.flip = q.flip[:0]
}
