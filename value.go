package mgate

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/creachadair/mgate/internal/drain"
	"github.com/creachadair/mgate/internal/intake"
)

// A Value is a mutable container for a single value of type T that publishes
// each update to its subscribers. It is safe for concurrent use by multiple
// goroutines, and must not be copied after its first use.
//
// A Value is a hot stream: it does not apply demand, and delivers every Set
// to every current subscriber. A new subscriber first receives the current
// value. A Value[bool] is the natural control stream for a gate.
//
// Every subscriber observes updates in the same order, which is the order in
// which they took effect. Signals to one subscriber never overlap, and no
// update is delivered after the terminal signal.
type Value[T any] struct {
	μ    sync.Mutex
	x    T
	subs []*valueSub[T] // copy on write
	done bool
	err  error
}

// NewValue creates a new Value with the given initial value.
func NewValue[T any](init T) *Value[T] { return &Value[T]{x: init} }

// Get returns the current value stored in v.
func (v *Value[T]) Get() T {
	v.μ.Lock()
	defer v.μ.Unlock()
	return v.x
}

// Set updates the value stored in v to x and delivers x to each subscriber.
// Set has no effect after v is closed.
func (v *Value[T]) Set(x T) {
	v.μ.Lock()
	if v.done {
		v.μ.Unlock()
		return
	}
	v.x = x
	subs := v.subs
	for _, s := range subs {
		s.pending.Push(x)
	}
	v.μ.Unlock()

	for _, s := range subs {
		s.drain()
	}
}

// Close completes the stream for all subscribers. If v is already closed,
// Close reports ErrClosed.
func (v *Value[T]) Close() error { return v.finish(nil) }

// Fail terminates the stream with err for all subscribers. If v is already
// closed, Fail reports ErrClosed.
func (v *Value[T]) Fail(err error) error { return v.finish(err) }

func (v *Value[T]) finish(err error) error {
	v.μ.Lock()
	if v.done {
		v.μ.Unlock()
		return ErrClosed
	}
	v.done, v.err = true, err
	subs := v.subs
	v.subs = nil
	for _, s := range subs {
		s.end.Store(&err)
	}
	v.μ.Unlock()

	for _, s := range subs {
		s.drain()
	}
	return nil
}

// Subscribe implements [Publisher]. The subscriber receives the current value
// of v, then every later update, none skipped. Updates made before the current
// value was taken are not replayed. If v is closed, the subscriber receives
// only the terminal signal.
func (v *Value[T]) Subscribe(dst Subscriber[T]) {
	s := &valueSub[T]{v: v, dst: dst, pending: intake.New[T](0)}
	dst.OnSubscribe(s)

	v.μ.Lock()
	if s.stopped.Load() {
		v.μ.Unlock()
		return
	} else if v.done {
		err := v.err
		s.end.Store(&err)
	} else {
		s.pending.Push(v.x)
		v.subs = append(v.subs[:len(v.subs):len(v.subs)], s)
	}
	v.μ.Unlock()
	s.drain()
}

func (v *Value[T]) remove(s *valueSub[T]) {
	v.μ.Lock()
	defer v.μ.Unlock()
	if i := slices.Index(v.subs, s); i >= 0 {
		v.subs = slices.Delete(slices.Clone(v.subs), i, i+1)
	}
}

type valueSub[T any] struct {
	v       *Value[T]
	dst     Subscriber[T]
	pending *intake.Queue[T]
	end     atomic.Pointer[error] // set once, after the last update
	loop    drain.Loop
	stopped atomic.Bool // cancelled, or the terminal signal was delivered
}

// Request implements part of [Subscription]. A Value does not apply demand.
func (s *valueSub[T]) Request(int64) {}

// Cancel implements part of [Subscription].
func (s *valueSub[T]) Cancel() {
	if s.stopped.CompareAndSwap(false, true) {
		s.v.remove(s)
		s.drain()
	}
}

func (s *valueSub[T]) drain() {
	if !s.loop.Enter() {
		return
	}
	for missed := int64(1); missed != 0; missed = s.loop.Leave(missed) {
		s.deliver()
	}
}

// deliver runs one drain pass. Only the active drainer may call it.
func (s *valueSub[T]) deliver() {
	for {
		if s.stopped.Load() {
			s.pending.Clear()
			return
		}
		end := s.end.Load() // N.B. before taking from the queue
		if x, ok := s.pending.Pop(); ok {
			s.dst.OnNext(x)
			continue
		}
		if end == nil || !s.stopped.CompareAndSwap(false, true) {
			return
		}
		if err := *end; err != nil {
			s.dst.OnError(err)
		} else {
			s.dst.OnComplete()
		}
	}
}
