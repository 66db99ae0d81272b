// Package streamtest provides a controllable publisher and a recording
// subscriber for testing stream operators.
package streamtest

import (
	"sync"
	"sync/atomic"

	"github.com/creachadair/mgate"
)

// A Source is a publisher that accepts a single subscriber and lets the test
// drive its signals directly. It does not apply demand, so a Source can push
// more values than were requested.
type Source[T any] struct {
	μ   sync.Mutex
	dst mgate.Subscriber[T]

	requested atomic.Int64
	cancels   atomic.Int32
}

// Subscribe implements [mgate.Publisher]. It panics if s already has a
// subscriber.
func (s *Source[T]) Subscribe(dst mgate.Subscriber[T]) {
	s.μ.Lock()
	if s.dst != nil {
		s.μ.Unlock()
		panic("streamtest: source already has a subscriber")
	}
	s.dst = dst
	s.μ.Unlock()
	dst.OnSubscribe(sourceSub[T]{s})
}

func (s *Source[T]) sub() mgate.Subscriber[T] {
	s.μ.Lock()
	defer s.μ.Unlock()
	if s.dst == nil {
		panic("streamtest: source has no subscriber")
	}
	return s.dst
}

// Push delivers v to the subscriber.
func (s *Source[T]) Push(vs ...T) {
	dst := s.sub()
	for _, v := range vs {
		dst.OnNext(v)
	}
}

// Complete delivers completion to the subscriber.
func (s *Source[T]) Complete() { s.sub().OnComplete() }

// Fail delivers err to the subscriber.
func (s *Source[T]) Fail(err error) { s.sub().OnError(err) }

// Requested reports the total demand requested by the subscriber.
func (s *Source[T]) Requested() int64 { return s.requested.Load() }

// Cancelled reports whether the subscriber cancelled its subscription.
func (s *Source[T]) Cancelled() bool { return s.cancels.Load() != 0 }

// Cancels reports how many times the subscriber called Cancel.
func (s *Source[T]) Cancels() int { return int(s.cancels.Load()) }

type sourceSub[T any] struct{ s *Source[T] }

func (ss sourceSub[T]) Request(n int64) {
	for {
		cur := ss.s.requested.Load()
		if ss.s.requested.CompareAndSwap(cur, mgate.AddDemand(cur, n)) {
			return
		}
	}
}

func (ss sourceSub[T]) Cancel() { ss.s.cancels.Add(1) }

// A Recorder is a subscriber that records every signal it receives. It also
// counts overlapping calls, which a correct operator never makes.
type Recorder[T any] struct {
	// Initial is the demand requested on subscribe; zero means none.
	Initial int64

	// If set, OnNext calls this after recording each value.
	Hook func(T)

	μ         sync.Mutex
	sub       mgate.Subscription
	values    []T
	errs      []error
	completes int

	inside   atomic.Int32
	overlaps atomic.Int32
}

func (r *Recorder[T]) enter() {
	if r.inside.Add(1) != 1 {
		r.overlaps.Add(1)
	}
}

func (r *Recorder[T]) leave() { r.inside.Add(-1) }

// OnSubscribe implements part of [mgate.Subscriber].
func (r *Recorder[T]) OnSubscribe(s mgate.Subscription) {
	r.μ.Lock()
	r.sub = s
	r.μ.Unlock()
	if r.Initial > 0 {
		s.Request(r.Initial)
	}
}

// OnNext implements part of [mgate.Subscriber].
func (r *Recorder[T]) OnNext(v T) {
	r.enter()
	defer r.leave()
	r.μ.Lock()
	r.values = append(r.values, v)
	r.μ.Unlock()
	if r.Hook != nil {
		r.Hook(v)
	}
}

// OnError implements part of [mgate.Subscriber].
func (r *Recorder[T]) OnError(err error) {
	r.enter()
	defer r.leave()
	r.μ.Lock()
	defer r.μ.Unlock()
	r.errs = append(r.errs, err)
}

// OnComplete implements part of [mgate.Subscriber].
func (r *Recorder[T]) OnComplete() {
	r.enter()
	defer r.leave()
	r.μ.Lock()
	defer r.μ.Unlock()
	r.completes++
}

// Subscription returns the subscription r received, or nil.
func (r *Recorder[T]) Subscription() mgate.Subscription {
	r.μ.Lock()
	defer r.μ.Unlock()
	return r.sub
}

// Values returns a copy of the values recorded so far.
func (r *Recorder[T]) Values() []T {
	r.μ.Lock()
	defer r.μ.Unlock()
	return append([]T(nil), r.values...)
}

// Errors returns a copy of the errors recorded so far.
func (r *Recorder[T]) Errors() []error {
	r.μ.Lock()
	defer r.μ.Unlock()
	return append([]error(nil), r.errs...)
}

// Completes reports the number of completions recorded.
func (r *Recorder[T]) Completes() int {
	r.μ.Lock()
	defer r.μ.Unlock()
	return r.completes
}

// Overlaps reports the number of signals that arrived while another signal
// was still being handled.
func (r *Recorder[T]) Overlaps() int { return int(r.overlaps.Load()) }
