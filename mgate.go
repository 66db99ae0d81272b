// Package mgate defines a minimal push-based stream contract and helpers for
// gating delivery of values from a producer to a consumer.
//
// The gating operators themselves live in subpackages: package valve
// suspends and resumes delivery without losing values, and package coalesce
// keeps only the most recent value while delivery is suspended.
package mgate

import (
	"math"

	"github.com/creachadair/mgate/diag"
)

// Unbounded is the demand value that disables flow control. Demand saturates
// at Unbounded and is never decremented once it reaches it.
const Unbounded = math.MaxInt64

// An Observer receives the values and terminal signal of a stream.
//
// A stream delivers zero or more values followed by at most one of OnError or
// OnComplete. The methods of an Observer are never called concurrently by a
// well-behaved stream.
type Observer[T any] interface {
	OnNext(T)
	OnError(error)
	OnComplete()
}

// A Subscriber is an Observer that also receives the Subscription governing
// its stream before any other signal.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	Observer[T]
}

// A Subscription connects a subscriber to a publisher.
type Subscription interface {
	// Request adds n > 0 to the number of values the subscriber is willing to
	// receive.
	Request(n int64)

	// Cancel asks the publisher to stop delivering signals and release its
	// resources. Cancel is idempotent.
	Cancel()
}

// A Publisher delivers a stream of values to each subscriber.
type Publisher[T any] interface {
	Subscribe(Subscriber[T])
}

// Funcs is a Subscriber whose behaviour is defined by optional callbacks.
// A nil Next or Complete is a no-op. A nil Error reports to the process-wide
// diagnostic sink so that the error is not lost. A nil Subscribe requests
// Unbounded demand.
type Funcs[T any] struct {
	Subscribe func(Subscription)
	Next      func(T)
	Error     func(error)
	Complete  func()
}

// OnSubscribe implements part of [Subscriber].
func (f Funcs[T]) OnSubscribe(s Subscription) {
	if f.Subscribe != nil {
		f.Subscribe(s)
	} else {
		s.Request(Unbounded)
	}
}

// OnNext implements part of [Subscriber].
func (f Funcs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

// OnError implements part of [Subscriber].
func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	} else {
		diag.Report(err)
	}
}

// OnComplete implements part of [Subscriber].
func (f Funcs[T]) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// AddDemand returns the sum of cur and n, saturating at Unbounded.
// Both arguments must be non-negative.
func AddDemand(cur, n int64) int64 {
	if cur == Unbounded || n >= Unbounded-cur {
		return Unbounded
	}
	return cur + n
}
