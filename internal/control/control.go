// Package control adapts a boolean control stream to the gate of an
// operator.
package control

import (
	"errors"

	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/internal/subs"
)

// A Gate receives the signals of a control stream.
type Gate interface {
	// Change sets the gate open (true) or closed (false).
	Change(open bool)

	// Fail reports a fatal control condition.
	Fail(error)

	// Discard reports an error that cannot be delivered.
	Discard(error)
}

// A Subscriber is a [mgate.Subscriber] for a control stream. It requests
// unbounded demand, forwards each value to its gate, and converts the end of
// the stream into a fatal error for the gate.
type Subscriber struct {
	gate Gate
	cell subs.Cell
}

// New constructs a control subscriber that drives g.
func New(g Gate) *Subscriber { return &Subscriber{gate: g} }

// OnSubscribe implements part of [mgate.Subscriber].
func (s *Subscriber) OnSubscribe(sub mgate.Subscription) {
	if err := s.cell.Set(sub); err == nil {
		sub.Request(mgate.Unbounded)
	} else if errors.Is(err, subs.ErrDuplicate) {
		s.gate.Discard(err)
	}
}

// OnNext implements part of [mgate.Subscriber].
func (s *Subscriber) OnNext(open bool) { s.gate.Change(open) }

// OnError implements part of [mgate.Subscriber].
func (s *Subscriber) OnError(err error) {
	s.gate.Fail(&mgate.SourceError{Source: mgate.Control, Err: err})
}

// OnComplete implements part of [mgate.Subscriber].
// A control stream that ends leaves the gate unable to change state, which
// is always treated as an error.
func (s *Subscriber) OnComplete() {
	s.gate.Fail(&mgate.SourceError{Source: mgate.Control, Err: mgate.ErrControlCompleted})
}

// Cancel releases the control subscription and reports whether this call
// released it.
func (s *Subscriber) Cancel() bool { return s.cell.Cancel() }
