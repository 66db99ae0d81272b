package coalesce

import (
	"sync/atomic"

	"github.com/creachadair/mds/value"
	"github.com/creachadair/mgate/internal/intake"
)

// slot holds the values of the stream that have not yet been delivered.
//
// Producers push onto arrivals. While the gate is closed the drainer folds
// arrivals into undelivered, keeping only the latest one. While the gate is
// open arrivals are delivered in order.
type slot[T any] struct {
	arrivals *intake.Queue[T]
	replay   atomic.Bool // redeliver the last value on the next pass

	// Drainer-owned.
	undelivered value.Maybe[T] // latest arrival while closed
	delivered   value.Maybe[T]
}

func newSlot[T any]() slot[T] { return slot[T]{arrivals: intake.New[T](0)} }

func (s *slot[T]) put(v T) { s.arrivals.Push(v) }

// fold discards all but the latest pending value. Only the active drainer may
// call fold.
func (s *slot[T]) fold() {
	for v, ok := s.arrivals.Pop(); ok; v, ok = s.arrivals.Pop() {
		s.undelivered = value.Just(v)
	}
}

// take returns the next value to deliver, if there is one.
// Only the active drainer may call take.
func (s *slot[T]) take() (T, bool) {
	v, ok := s.undelivered.GetOK()
	if ok {
		s.undelivered = value.Absent[T]()
	} else {
		v, ok = s.arrivals.Pop()
	}
	if ok {
		s.replay.Store(false) // this is newer than the last value in any case
		s.delivered = value.Just(v)
		return v, true
	}
	if s.replay.Swap(false) {
		return s.delivered.GetOK()
	}
	return v, false
}

// clear discards the contents of s. Only the active drainer may call clear.
func (s *slot[T]) clear() {
	s.arrivals.Clear()
	s.replay.Store(false)
	s.undelivered = value.Absent[T]()
	s.delivered = value.Absent[T]()
}
