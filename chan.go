package mgate

import (
	"sync"
	"sync/atomic"
)

// A Chan is a Subscriber that delivers the values of a stream to a channel.
//
// A Chan requests unbounded demand and applies backpressure by blocking the
// delivering goroutine until the receiver takes each value. When the stream
// terminates or the receiver calls Close, the channel is closed and any
// pending delivery is abandoned rather than panicking.
type Chan[T any] struct {
	recv   <-chan T      // the receive side of ch, never nil
	done   chan struct{} // closed when c is closed
	closed atomic.Bool

	// μ protects the fields below:
	// Lock μ shared to copy or send to ch.
	// Lock μ exclusively to close ch or modify any field.
	μ   sync.RWMutex
	ch  chan T
	sub Subscription
	err error
}

// NewChan creates a new Chan with the specified channel buffer capacity.
// If cap == 0, the channel is unbuffered.
func NewChan[T any](cap int) *Chan[T] {
	ch := make(chan T, cap)
	return &Chan[T]{recv: ch, ch: ch, done: make(chan struct{})}
}

// Recv returns a channel to which delivered values are sent. The channel is
// closed when the stream terminates or c is closed.
func (c *Chan[T]) Recv() <-chan T { return c.recv }

// Err returns the error that terminated the stream, or nil if the stream
// completed normally or has not yet terminated.
func (c *Chan[T]) Err() error {
	c.μ.RLock()
	defer c.μ.RUnlock()
	return c.err
}

// Close cancels the subscription feeding c and closes the receive channel.
// If c is already closed, Close reports ErrClosed.
func (c *Chan[T]) Close() error { return c.shutdown(nil, true) }

// OnSubscribe implements part of [Subscriber].
func (c *Chan[T]) OnSubscribe(s Subscription) {
	c.μ.Lock()
	if c.sub != nil || c.closed.Load() {
		c.μ.Unlock()
		s.Cancel()
		return
	}
	c.sub = s
	c.μ.Unlock()
	s.Request(Unbounded)
}

// OnNext implements part of [Subscriber]. It blocks until v is received or c
// is closed.
func (c *Chan[T]) OnNext(v T) {
	c.μ.RLock()
	defer c.μ.RUnlock()
	select {
	case <-c.done:
	case c.ch <- v:
	}
}

// OnError implements part of [Subscriber].
func (c *Chan[T]) OnError(err error) { c.shutdown(err, false) }

// OnComplete implements part of [Subscriber].
func (c *Chan[T]) OnComplete() { c.shutdown(nil, false) }

func (c *Chan[T]) shutdown(err error, cancel bool) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(c.done) // release any pending senders

	c.μ.Lock()
	sub := c.sub
	c.err = err
	close(c.ch)
	c.ch = nil // no future sender must see c.ch as ready
	c.μ.Unlock()

	if cancel && sub != nil {
		sub.Cancel()
	}
	return nil
}
