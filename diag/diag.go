// Package diag routes errors that cannot be delivered to a consumer, so that
// they are not silently lost.
package diag

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// A Sink receives undeliverable errors. A Sink may be called concurrently
// from multiple goroutines and must not block.
type Sink func(error)

// Discard is a Sink that drops every error.
func Discard(error) {}

var sink atomic.Pointer[Sink]

func init() {
	s := Hclog(hclog.Default().Named("mgate"))
	sink.Store(&s)
}

// Report sends err to the process-wide sink. A nil err is ignored.
func Report(err error) {
	if err != nil {
		(*sink.Load())(err)
	}
}

// SetDefault replaces the process-wide sink with s and returns the previous
// one. A nil s restores logging to the default hclog logger.
func SetDefault(s Sink) Sink {
	if s == nil {
		s = Hclog(hclog.Default().Named("mgate"))
	}
	return *sink.Swap(&s)
}

// Or returns s if it is non-nil, otherwise [Report].
func Or(s Sink) Sink {
	if s != nil {
		return s
	}
	return Report
}

// Hclog returns a Sink that logs each error at error level to lg.
func Hclog(lg hclog.Logger) Sink {
	return func(err error) { lg.Error("undeliverable error", "error", err) }
}

// Zerolog returns a Sink that logs each error at error level to lg.
func Zerolog(lg zerolog.Logger) Sink {
	return func(err error) { lg.Error().Err(err).Msg("undeliverable error") }
}

// A Recorder accumulates the errors sent to its Sink.
// A zero Recorder is ready for use, but must not be copied after first use.
type Recorder struct {
	μ   sync.Mutex
	err *multierror.Error
}

// Sink records err. It has the signature of a [Sink].
func (r *Recorder) Sink(err error) {
	r.μ.Lock()
	defer r.μ.Unlock()
	r.err = multierror.Append(r.err, err)
}

// Len reports the number of errors recorded.
func (r *Recorder) Len() int {
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.err == nil {
		return 0
	}
	return r.err.Len()
}

// Errors returns a copy of the errors recorded, in order of arrival.
func (r *Recorder) Errors() []error {
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.err == nil {
		return nil
	}
	return append([]error(nil), r.err.Errors...)
}

// Err returns an error combining all the recorded errors, or nil if there
// are none.
func (r *Recorder) Err() error {
	r.μ.Lock()
	defer r.μ.Unlock()
	return r.err.ErrorOrNil()
}
