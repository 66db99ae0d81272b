// Package subs implements an atomically swappable cell holding an upstream
// subscription, with deferred demand and idempotent cancellation.
package subs

import (
	"errors"
	"sync/atomic"

	"github.com/creachadair/mgate"
)

var (
	// ErrCancelled is reported by Set when the cell was cancelled before the
	// subscription arrived.
	ErrCancelled = errors.New("subscription cancelled")

	// ErrDuplicate is reported by Set when the cell already holds a
	// subscription. This indicates a misbehaving publisher.
	ErrDuplicate = errors.New("subscription already set")
)

type holder struct{ s mgate.Subscription }

// cancelled is the terminal state of every cell.
var cancelled = new(holder)

// A Cell holds at most one subscription. Demand requested before the
// subscription is set accumulates and is forwarded when it arrives. A zero
// Cell is ready for use, but must not be copied after first use.
type Cell struct {
	sub     atomic.Pointer[holder]
	pending atomic.Int64
}

// Set installs s in c. If c already holds a subscription or has been
// cancelled, s is cancelled and Set reports ErrDuplicate or ErrCancelled.
func (c *Cell) Set(s mgate.Subscription) error {
	if c.sub.CompareAndSwap(nil, &holder{s: s}) {
		if n := c.pending.Swap(0); n != 0 {
			s.Request(n)
		}
		return nil
	}
	s.Cancel()
	if c.sub.Load() == cancelled {
		return ErrCancelled
	}
	return ErrDuplicate
}

// Request forwards n to the subscription in c, or accumulates it until one is
// set. Requests on a cancelled cell are ignored.
func (c *Cell) Request(n int64) {
	if h := c.sub.Load(); h != nil {
		if h != cancelled {
			h.s.Request(n)
		}
		return
	}
	for {
		cur := c.pending.Load()
		if c.pending.CompareAndSwap(cur, mgate.AddDemand(cur, n)) {
			break
		}
	}

	// The subscription may have been set while we were accumulating. If so,
	// exactly one of Set or this call takes the pending amount.
	if h := c.sub.Load(); h != nil && h != cancelled {
		if n := c.pending.Swap(0); n != 0 {
			h.s.Request(n)
		}
	}
}

// Cancel cancels the subscription in c, if any, and reports whether this was
// the call that cancelled c. Any subscription set after Cancel is cancelled
// immediately.
func (c *Cell) Cancel() bool {
	old := c.sub.Swap(cancelled)
	if old == cancelled {
		return false
	}
	if old != nil {
		old.s.Cancel()
	}
	return true
}

// Cancelled reports whether c has been cancelled.
func (c *Cell) Cancelled() bool { return c.sub.Load() == cancelled }
