package testutil

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var counter int32
		go func() {
			time.Sleep(50 * time.Millisecond)
			atomic.StoreInt32(&counter, 1)
		}()

		Eventually(t, func() bool {
			return atomic.LoadInt32(&counter) == 1
		}, 200*time.Millisecond, 10*time.Millisecond)
	})
}

func TestWaitForInt64(t *testing.T) {
	var value int64

	go func() {
		time.Sleep(30 * time.Millisecond)
		atomic.StoreInt64(&value, 100)
	}()

	WaitForInt64(t, &value, 100, 200*time.Millisecond)

	if atomic.LoadInt64(&value) != 100 {
		t.Errorf("value = %d, want 100", value)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Advance(time.Second)
	AssertEqual(t, clock.Now(), start.Add(time.Second))

	clock.Set(start)
	AssertEqual(t, clock.Now(), start)
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource(2)
	ctx := context.Background()

	f, err := src.ReadNext(ctx)
	AssertNoError(t, err)
	AssertEqual(t, string(f.Data), "frame-1")

	_, err = src.ReadNext(ctx)
	AssertNoError(t, err)

	_, err = src.ReadNext(ctx)
	AssertEqual(t, errors.Is(err, io.EOF), true)

	n, known := src.TotalCount()
	AssertEqual(t, n, uint64(2))
	AssertEqual(t, known, true)

	_, known = src.HideTotal().TotalCount()
	AssertEqual(t, known, false)
}

func TestScriptedAnnotator(t *testing.T) {
	tr := &AnnotatorTracker{Inner: &ScriptedAnnotator{Failures: map[string]bool{"frame-2": true}}}
	ann, err := tr.Factory()(0)
	AssertNoError(t, err)

	src := NewMemorySource(2)
	ctx := context.Background()

	f1, _ := src.ReadNext(ctx)
	out, err := ann.Annotate(ctx, f1)
	AssertNoError(t, err)
	AssertEqual(t, string(out.Data), "frame-1+ann")
	AssertEqual(t, string(f1.Data), "frame-1")

	f2, _ := src.ReadNext(ctx)
	_, err = ann.Annotate(ctx, f2)
	AssertError(t, err)

	AssertNoError(t, ann.Close())
	opened, closed := tr.Counts()
	AssertEqual(t, opened, 1)
	AssertEqual(t, closed, 1)
}

func TestRunWithin(t *testing.T) {
	RunWithin(t, time.Second, func() {
		time.Sleep(time.Millisecond)
	})
}
