// Package drain implements a work counter that elects a single goroutine to
// run a delivery loop on behalf of all goroutines that have work for it.
//
// Usage:
//
//	if !loop.Enter() {
//		return // another goroutine is draining and will see our work
//	}
//	for missed := int64(1); missed != 0; missed = loop.Leave(missed) {
//		// ... deliver everything currently pending ...
//	}
package drain

import "sync/atomic"

// A Loop is a work counter. A zero Loop is ready for use, but must not be
// copied after first use.
type Loop struct {
	wip atomic.Int64
}

// Enter records one unit of work and reports whether the caller is now the
// active drainer. Only the caller whose increment took the counter from zero
// becomes the drainer; every other caller must return without delivering.
func (l *Loop) Enter() bool { return l.wip.Add(1) == 1 }

// Leave retires missed units of work on behalf of the active drainer and
// reports how many units arrived in the meantime. When it returns zero the
// caller is no longer the drainer.
func (l *Loop) Leave(missed int64) int64 { return l.wip.Add(-missed) }
