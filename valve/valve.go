// Package valve implements a stream operator that suspends and resumes the
// delivery of values according to a boolean control stream, without losing
// or reordering any value.
//
// While the valve is closed, values from the main stream are queued. When the
// control stream reports true the valve opens and queued values are delivered
// in arrival order, subject to the demand of the consumer.
//
// The first error from either upstream is delivered to the consumer, after
// which both upstream subscriptions are cancelled. Later errors are sent to a
// diagnostic sink. If the control stream completes before the valve delivers
// its own completion, the consumer receives an error wrapping
// [mgate.ErrControlCompleted].
package valve

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/diag"
	"github.com/creachadair/mgate/internal/control"
	"github.com/creachadair/mgate/internal/drain"
	"github.com/creachadair/mgate/internal/fault"
	"github.com/creachadair/mgate/internal/intake"
	"github.com/creachadair/mgate/internal/subs"
)

// Options are settings for a [Valve]. A nil *Options provides default values
// as described on each field.
type Options struct {
	// If true, the valve starts closed. By default it starts open.
	Closed bool

	// The number of values the valve expects to buffer at once. This is a
	// hint, and does not bound the buffer.
	Capacity int

	// Receives errors that cannot be delivered to the consumer.
	// If nil, errors go to the process-wide sink, see [diag.Report].
	Sink diag.Sink
}

func (o *Options) closed() bool { return o != nil && o.Closed }

func (o *Options) capacity() int {
	if o == nil {
		return 0
	}
	return o.Capacity
}

func (o *Options) sink() diag.Sink {
	if o == nil {
		return nil
	}
	return o.Sink
}

// A Valve is a [mgate.Publisher] that gates the values of a source stream
// with a control stream. Each subscriber gets its own independent valve
// state and its own subscriptions to both upstreams.
type Valve[T any] struct {
	src     mgate.Publisher[T]
	control mgate.Publisher[bool]
	opts    *Options
}

// New constructs a valve for src controlled by control.
func New[T any](src mgate.Publisher[T], control mgate.Publisher[bool], opts *Options) *Valve[T] {
	return &Valve[T]{src: src, control: control, opts: opts}
}

// Subscribe implements [mgate.Publisher].
func (v *Valve[T]) Subscribe(dst mgate.Subscriber[T]) { v.Attach(dst) }

// Attach connects dst to the valve and subscribes to both upstreams. It
// returns the subscription that was also passed to dst.OnSubscribe.
func (v *Valve[T]) Attach(dst mgate.Subscriber[T]) mgate.Subscription {
	c := &conn[T]{
		dst:   dst,
		queue: intake.New[T](v.opts.capacity()),
		fault: fault.NewSlot(v.opts.sink()),
	}
	c.open.Store(!v.opts.closed())
	c.ctl = control.New(c)

	dst.OnSubscribe(c)
	v.control.Subscribe(c.ctl)
	v.src.Subscribe(upstream[T]{c})
	return c
}

// A conn is the state of one valve subscription. Its methods may be called
// concurrently from the main upstream, the control upstream, and the
// consumer; only the goroutine elected by loop delivers to dst.
type conn[T any] struct {
	dst   mgate.Subscriber[T]
	queue *intake.Queue[T]
	fault *fault.Slot
	ctl   *control.Subscriber
	main  subs.Cell
	loop  drain.Loop

	requested atomic.Int64
	open      atomic.Bool // gate state
	done      atomic.Bool // the main upstream completed
	stopped   atomic.Bool // cancelled, or a terminal signal was delivered
}

// Request implements part of [mgate.Subscription].
func (c *conn[T]) Request(n int64) {
	if n <= 0 {
		c.Fail(fmt.Errorf("valve: %w: %d", mgate.ErrInvalidRequest, n))
		return
	}
	for {
		cur := c.requested.Load()
		if c.requested.CompareAndSwap(cur, mgate.AddDemand(cur, n)) {
			break
		}
	}
	c.main.Request(n)
	c.drain()
}

// Cancel implements part of [mgate.Subscription].
func (c *conn[T]) Cancel() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	c.main.Cancel()
	c.ctl.Cancel()
	c.fault.Discard(c.fault.Terminate())
	c.drain() // discard buffered values
}

// Change implements part of [control.Gate].
func (c *conn[T]) Change(open bool) {
	c.open.Store(open)
	if open {
		c.drain()
	}
}

// Fail implements part of [control.Gate].
func (c *conn[T]) Fail(err error) {
	if c.fault.Record(err) {
		c.drain()
	}
}

// Discard implements part of [control.Gate].
func (c *conn[T]) Discard(err error) { c.fault.Discard(err) }

func (c *conn[T]) push(v T) {
	if c.stopped.Load() {
		return
	}
	c.queue.Push(v)
	c.drain()
}

func (c *conn[T]) drain() {
	if !c.loop.Enter() {
		return
	}
	for missed := int64(1); missed != 0; missed = c.loop.Leave(missed) {
		c.deliver()
	}
}

// deliver runs one drain pass. Only the active drainer may call it.
func (c *conn[T]) deliver() {
	for {
		if c.stopped.Load() {
			c.queue.Clear()
			return
		}
		if c.fault.Err() != nil {
			c.terminate(c.fault.Terminate())
			return
		}
		if !c.open.Load() {
			return
		}
		if c.requested.Load() == 0 {
			if c.done.Load() && c.queue.IsEmpty() {
				c.terminate(nil)
			}
			return
		}

		done := c.done.Load() // N.B. before polling the queue
		v, ok := c.queue.Pop()
		if !ok {
			if done {
				c.terminate(nil)
			}
			return
		}
		c.produced()
		c.dst.OnNext(v)
	}
}

// produced consumes one unit of demand, unless demand is unbounded.
func (c *conn[T]) produced() {
	for {
		cur := c.requested.Load()
		if cur == mgate.Unbounded || c.requested.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// terminate delivers err to the consumer, or completion if err == nil, and
// releases both upstreams. If the consumer already cancelled, err is
// discarded instead. Only the active drainer may call terminate.
func (c *conn[T]) terminate(err error) {
	c.queue.Clear()
	if !c.stopped.CompareAndSwap(false, true) {
		c.fault.Discard(err)
		return
	}
	c.main.Cancel()
	c.ctl.Cancel()
	if err == nil {
		err = c.fault.Terminate() // an error that arrived since we checked wins
	}
	if err != nil {
		c.dst.OnError(err)
	} else {
		c.dst.OnComplete()
	}
}

// upstream is the subscriber attached to the main stream.
type upstream[T any] struct{ *conn[T] }

func (u upstream[T]) OnSubscribe(s mgate.Subscription) {
	if err := u.main.Set(s); errors.Is(err, subs.ErrDuplicate) {
		u.fault.Discard(err)
	}
}

func (u upstream[T]) OnNext(v T) { u.push(v) }

func (u upstream[T]) OnError(err error) {
	u.Fail(&mgate.SourceError{Source: mgate.Main, Err: err})
}

func (u upstream[T]) OnComplete() {
	u.done.Store(true)
	u.drain()
}
