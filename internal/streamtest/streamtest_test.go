package streamtest_test

import (
	"errors"
	"testing"

	"github.com/creachadair/mds/mtest"
	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/internal/streamtest"
)

func TestSource(t *testing.T) {
	var src streamtest.Source[int]
	mtest.MustPanicf(t, func() { src.Push(1) }, "Push without a subscriber should panic")

	rec := &streamtest.Recorder[int]{Initial: 3}
	src.Subscribe(rec)
	mtest.MustPanicf(t, func() { src.Subscribe(rec) }, "second Subscribe should panic")

	if got := src.Requested(); got != 3 {
		t.Errorf("Requested: got %d, want 3", got)
	}
	rec.Subscription().Request(mgate.Unbounded)
	if got := src.Requested(); got != mgate.Unbounded {
		t.Errorf("Requested: got %d, want Unbounded", got)
	}

	src.Push(1, 2)
	src.Fail(errors.New("bad"))
	src.Complete()
	if got := rec.Values(); len(got) != 2 {
		t.Errorf("Values: got %v, want 2 values", got)
	}
	if len(rec.Errors()) != 1 || rec.Completes() != 1 {
		t.Errorf("Terminal: got %d errors, %d completes", len(rec.Errors()), rec.Completes())
	}

	rec.Subscription().Cancel()
	rec.Subscription().Cancel()
	if n := src.Cancels(); n != 2 {
		t.Errorf("Cancels: got %d, want 2", n)
	}
}

func TestRecorderOverlap(t *testing.T) {
	var rec streamtest.Recorder[int]
	rec.Hook = func(v int) {
		if v == 1 {
			rec.OnNext(2) // reentrant delivery
		}
	}
	rec.OnNext(1)
	if n := rec.Overlaps(); n != 1 {
		t.Errorf("Overlaps: got %d, want 1", n)
	}
}
