// Package credit bounds how many frames are in flight between ingestion and
// the reorder stage.
//
// Ingestion waits for one credit before it reads a frame. The reorder stage
// returns the credit once the frame has left its buffer, whether it was
// written, skipped as failed or declared lost. A stalled head frame therefore
// stops the source instead of growing the reorder buffer, and no completion
// ever has to be dropped to keep memory bounded.
package credit

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Window is a fixed pool of credits. A nil *Window is unbounded: Wait never
// blocks and Release does nothing.
type Window struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

// New returns a window of capacity credits, or nil when capacity is not
// positive.
func New(capacity int) *Window {
	if capacity <= 0 {
		return nil
	}
	return &Window{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Wait blocks until a credit is free or ctx is done.
func (w *Window) Wait(ctx context.Context) error {
	if w == nil {
		return ctx.Err()
	}
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	w.inUse.Add(1)
	return nil
}

// Release returns n credits. Releasing more than are in use returns only
// those in use.
func (w *Window) Release(n uint64) {
	if w == nil || n == 0 {
		return
	}
	for {
		held := w.inUse.Load()
		give := int64(n)
		if give > held {
			give = held
		}
		if give == 0 {
			return
		}
		if w.inUse.CompareAndSwap(held, held-give) {
			w.sem.Release(give)
			return
		}
	}
}

// Capacity returns the window size, 0 for an unbounded window.
func (w *Window) Capacity() int {
	if w == nil {
		return 0
	}
	return int(w.capacity)
}

// InUse returns the number of credits held.
func (w *Window) InUse() int {
	if w == nil {
		return 0
	}
	return int(w.inUse.Load())
}
