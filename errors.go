package mgate

import (
	"errors"
	"fmt"
)

// ErrControlCompleted is reported when the control stream of a gate ends
// before the gate has delivered its own completion. A gate whose state can no
// longer change would hold its buffered values forever.
var ErrControlCompleted = errors.New("control source completed unexpectedly")

// ErrClosed is reported by a Value or Chan that is already closed.
var ErrClosed = errors.New("stream is closed")

// ErrInvalidRequest is reported when a subscriber requests a non-positive
// number of values.
var ErrInvalidRequest = errors.New("request must be positive")

// Source identifies which upstream of a gate reported an error.
type Source int

const (
	Main    Source = iota + 1 // the data stream
	Control                   // the boolean control stream
)

func (s Source) String() string {
	switch s {
	case Main:
		return "main"
	case Control:
		return "control"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// SourceError is the terminal error delivered to a consumer when one of the
// upstreams of a gate fails.
type SourceError struct {
	Source Source
	Err    error
}

func (e *SourceError) Error() string { return fmt.Sprintf("%v source: %v", e.Source, e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }

// SecondaryError wraps an error that could not be delivered because the
// stream had already terminated. Such errors are sent to a diagnostic sink.
type SecondaryError struct {
	Err error
}

func (e *SecondaryError) Error() string { return "undeliverable: " + e.Err.Error() }

func (e *SecondaryError) Unwrap() error { return e.Err }
