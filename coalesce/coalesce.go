// Package coalesce implements a gate that suspends and resumes the delivery
// of a stream according to a boolean control stream, keeping only the most
// recent value while suspended.
//
// Unlike a valve, a coalescing gate is lossy on purpose: values that arrive
// while the gate is closed overwrite each other, and only the latest one is
// delivered when the gate opens. While the gate is open, values are delivered
// in arrival order. The gate does not apply demand; it requests unbounded
// demand from both upstreams.
//
// Error handling matches package valve: the first error from either upstream
// is delivered once and both upstreams are released; completion of the
// control stream is an error.
package coalesce

import (
	"errors"
	"sync/atomic"

	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/diag"
	"github.com/creachadair/mgate/internal/control"
	"github.com/creachadair/mgate/internal/drain"
	"github.com/creachadair/mgate/internal/fault"
	"github.com/creachadair/mgate/internal/subs"
)

// Options are settings for a [Gate]. A nil *Options provides default values
// as described on each field.
type Options struct {
	// If true, the gate starts closed. By default it starts open.
	Closed bool

	// Which value to deliver when the gate opens.
	// By default, ReplayLastUndelivered.
	Policy Policy

	// Receives errors that cannot be delivered to the observer.
	// If nil, errors go to the process-wide sink, see [diag.Report].
	Sink diag.Sink
}

func (o *Options) closed() bool { return o != nil && o.Closed }

func (o *Options) policy() Policy {
	if o == nil {
		return ReplayLastUndelivered
	}
	return o.Policy
}

func (o *Options) sink() diag.Sink {
	if o == nil {
		return nil
	}
	return o.Sink
}

// A Gate is the handle for an attached coalescing gate.
type Gate[T any] struct{ c *conn[T] }

// Attach subscribes to src and ctl and delivers the values of src to dst,
// gated by the values of ctl.
func Attach[T any](src mgate.Publisher[T], ctl mgate.Publisher[bool], dst mgate.Observer[T], opts *Options) *Gate[T] {
	c := &conn[T]{
		dst:    dst,
		policy: opts.policy(),
		slot:   newSlot[T](),
		fault:  fault.NewSlot(opts.sink()),
	}
	c.open.Store(!opts.closed())
	c.ctl = control.New(c)

	ctl.Subscribe(c.ctl)
	src.Subscribe(upstream[T]{c})
	return &Gate[T]{c: c}
}

// Cancel detaches the observer and cancels both upstream subscriptions.
// After Cancel returns, the observer receives no further signals other than
// one already in progress. Cancel is idempotent.
func (g *Gate[T]) Cancel() { g.c.cancel() }

type conn[T any] struct {
	dst    mgate.Observer[T]
	policy Policy
	slot   slot[T]
	fault  *fault.Slot
	ctl    *control.Subscriber
	main   subs.Cell
	loop   drain.Loop

	open    atomic.Bool // gate state
	done    atomic.Bool // the main upstream completed
	stopped atomic.Bool // cancelled, or a terminal signal was delivered
}

func (c *conn[T]) cancel() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	c.main.Cancel()
	c.ctl.Cancel()
	c.fault.Discard(c.fault.Terminate())
	c.drain()
}

// Change implements part of [control.Gate]. Calls to Change are serialized
// by the control stream.
func (c *conn[T]) Change(open bool) {
	if open && c.policy == ReplayLast && !c.open.Load() {
		// Arm the replay before opening, so that a value delivered as soon as
		// the gate opens supersedes it.
		c.slot.replay.Store(true)
	}
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
	c.slot.put(v)
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
			c.slot.clear()
			return
		}
		if c.fault.Err() != nil {
			c.terminate(c.fault.Terminate())
			return
		}
		if !c.open.Load() {
			c.slot.fold()
			return
		}

		done := c.done.Load() // N.B. before taking from the slot
		v, ok := c.slot.take()
		if !ok {
			if done {
				c.terminate(nil)
			}
			return
		}
		c.dst.OnNext(v)
	}
}

// terminate delivers err to the observer, or completion if err == nil, and
// releases both upstreams. Only the active drainer may call terminate.
func (c *conn[T]) terminate(err error) {
	c.slot.clear()
	if !c.stopped.CompareAndSwap(false, true) {
		c.fault.Discard(err)
		return
	}
	c.main.Cancel()
	c.ctl.Cancel()
	if err == nil {
		err = c.fault.Terminate()
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
	if err := u.main.Set(s); err == nil {
		s.Request(mgate.Unbounded)
	} else if errors.Is(err, subs.ErrDuplicate) {
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
