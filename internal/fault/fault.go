// Package fault implements a first-wins terminal error slot.
package fault

import (
	"sync/atomic"

	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/diag"
)

// A Slot records at most one terminal error. Errors that lose the race to
// fill the slot, or that arrive after the slot is terminated, are sent to the
// diagnostic sink wrapped in a [mgate.SecondaryError].
type Slot struct {
	sink diag.Sink
	err  atomic.Pointer[error]
}

// terminated marks a slot whose error, if any, has been taken.
var terminated = new(error)

// NewSlot constructs an empty slot that reports undeliverable errors to s.
// If s == nil, errors go to the process-wide sink.
func NewSlot(s diag.Sink) *Slot { return &Slot{sink: diag.Or(s)} }

// Record stores err if the slot is empty, and reports whether it did.
func (s *Slot) Record(err error) bool {
	if s.err.CompareAndSwap(nil, &err) {
		return true
	}
	s.Discard(err)
	return false
}

// Discard sends err to the diagnostic sink as a secondary error.
func (s *Slot) Discard(err error) {
	if err != nil {
		s.sink(&mgate.SecondaryError{Err: err})
	}
}

// Err returns the recorded error, or nil if none has been recorded or the
// slot has been terminated.
func (s *Slot) Err() error {
	if p := s.err.Load(); p != nil && p != terminated {
		return *p
	}
	return nil
}

// Terminate closes the slot and returns the error it held, if any. After
// Terminate, every call to Record fails.
func (s *Slot) Terminate() error {
	if p := s.err.Swap(terminated); p != nil && p != terminated {
		return *p
	}
	return nil
}
