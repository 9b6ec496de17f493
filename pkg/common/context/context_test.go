package context

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/frameflow/internal/testutil"
)

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	testutil.AssertEqual(t, IsCanceled(ctx), false)
	cancel()
	testutil.AssertEqual(t, IsCanceled(ctx), true)
	testutil.AssertEqual(t, IsTimedOut(ctx), false)
}

func TestWithTimeoutOrCancel(t *testing.T) {
	ctx, cancel := WithTimeoutOrCancel(context.Background(), 10*time.Millisecond)
	defer cancel()

	<-ctx.Done()
	testutil.AssertEqual(t, IsTimedOut(ctx), true)

	noDeadline, cancel2 := WithTimeoutOrCancel(context.Background(), 0)
	_, ok := noDeadline.Deadline()
	testutil.AssertEqual(t, ok, false)
	cancel2()
	testutil.AssertEqual(t, IsCanceled(noDeadline), true)
}

func TestSleep(t *testing.T) {
	start := time.Now()
	testutil.AssertNoError(t, Sleep(context.Background(), 5*time.Millisecond))
	testutil.AssertEqual(t, time.Since(start) >= 5*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	testutil.AssertEqual(t, Sleep(ctx, time.Hour), context.Canceled)
}
