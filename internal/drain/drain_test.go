package drain_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/creachadair/mgate/internal/drain"
	"github.com/fortytw2/leaktest"
)

func TestLoop(t *testing.T) {
	var l drain.Loop
	if !l.Enter() {
		t.Fatal("First Enter did not elect a drainer")
	}
	if l.Enter() || l.Enter() {
		t.Error("Nested Enter elected a second drainer")
	}
	if got := l.Leave(1); got != 2 {
		t.Errorf("Leave(1): got %d, want 2", got)
	}
	if got := l.Leave(2); got != 0 {
		t.Errorf("Leave(2): got %d, want 0", got)
	}

	// Once all work is retired, the next caller becomes the drainer.
	if !l.Enter() {
		t.Error("Enter after all work retired did not elect a drainer")
	}
}

func TestLoopExclusive(t *testing.T) {
	defer leaktest.Check(t)()

	const numTasks = 32
	const numOps = 500

	var l drain.Loop
	var posted, handled atomic.Int64
	var inside atomic.Int32

	work := func() {
		posted.Add(1)
		if !l.Enter() {
			return
		}
		for missed := int64(1); missed != 0; missed = l.Leave(missed) {
			if n := inside.Add(1); n != 1 {
				t.Errorf("Drain has %d concurrent runners", n)
			}
			handled.Add(missed)
			inside.Add(-1)
		}
	}

	var wg sync.WaitGroup
	for range numTasks {
		wg.Go(func() {
			for range numOps {
				work()
			}
		})
	}
	wg.Wait()

	if !l.Enter() {
		t.Error("Loop is still held after all tasks finished")
	}
	// Every unit of work posted is retired by exactly one pass.
	if p, h := posted.Load(), handled.Load(); p != h {
		t.Errorf("Posted %d units, handled %d", p, h)
	}
}
