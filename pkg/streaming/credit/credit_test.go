package credit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vnykmshr/frameflow/internal/testutil"
)

func TestWindowBlocksWhenFull(t *testing.T) {
	w := New(2)
	ctx := context.Background()
	testutil.AssertNoError(t, w.Wait(ctx))
	testutil.AssertNoError(t, w.Wait(ctx))
	testutil.AssertEqual(t, w.InUse(), 2)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := w.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on a full window, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Wait(ctx) }()
	w.Release(1)
	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("release did not wake the waiter")
	}
	testutil.AssertEqual(t, w.InUse(), 2)
}

func TestWindowReleaseClampsToInUse(t *testing.T) {
	w := New(3)
	testutil.AssertNoError(t, w.Wait(context.Background()))
	w.Release(5)
	testutil.AssertEqual(t, w.InUse(), 0)
	w.Release(1)
	testutil.AssertEqual(t, w.InUse(), 0)
	testutil.AssertEqual(t, w.Capacity(), 3)
}

func TestNilWindowIsUnbounded(t *testing.T) {
	var w *Window
	if New(0) != nil || New(-1) != nil {
		t.Fatal("non-positive capacity should give an unbounded window")
	}
	for i := 0; i < 100; i++ {
		testutil.AssertNoError(t, w.Wait(context.Background()))
	}
	w.Release(10)
	testutil.AssertEqual(t, w.InUse(), 0)
	testutil.AssertEqual(t, w.Capacity(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("unbounded Wait should still honour ctx, got %v", err)
	}
}
