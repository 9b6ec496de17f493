package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
)

// Stats holds counters describing channel traffic.
type Stats struct {
	// Puts is the number of values accepted.
	Puts int64

	// Gets is the number of values handed to a consumer.
	Gets int64

	// BlockedPuts is the number of Put calls that found the buffer full.
	BlockedPuts int64

	// EmptyPolls is the number of Get calls whose timeout elapsed.
	EmptyPolls int64

	// HighWater is the largest number of values buffered at once.
	HighWater int

	// Utilization is the current fill ratio (0.0 to 1.0).
	Utilization float64
}

// Config holds configuration for a Channel.
type Config struct {
	// BufferSize is the fixed capacity. Values below 1 are raised to 1.
	BufferSize int

	// OnBlock is called, without the lock held, each time a Put has to wait.
	OnBlock func()
}

// Channel is a bounded FIFO queue with blocking hand-off between goroutines.
// Put blocks while the buffer is full and Get blocks while it is empty; both
// give up when their context is done. Values are never dropped: every value a
// Put accepted is returned by exactly one Get.
type Channel[T any] struct {
	config Config
	buffer []T
	mu     sync.RWMutex

	head   int
	tail   int
	count  int
	closed int32

	notFull  *sync.Cond
	notEmpty *sync.Cond

	stats Stats
}

// New creates a Channel with the given capacity.
func New[T any](bufferSize int) *Channel[T] {
	return NewWithConfig[T](Config{BufferSize: bufferSize})
}

// NewWithConfig creates a Channel with the specified configuration.
func NewWithConfig[T any](config Config) *Channel[T] {
	if config.BufferSize < 1 {
		config.BufferSize = 1
	}

	ch := &Channel[T]{
		config: config,
		buffer: make([]T, config.BufferSize),
	}
	ch.notFull = sync.NewCond(&ch.mu)
	ch.notEmpty = sync.NewCond(&ch.mu)

	return ch
}

// Put appends value, blocking while the buffer is full. It returns ErrClosed
// if the channel is or becomes closed, or the context error if ctx is done
// before space frees up.
func (ch *Channel[T]) Put(ctx context.Context, value T) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.IsClosed() {
		return gferrors.ErrClosed
	}

	if ch.count >= len(ch.buffer) {
		ch.stats.BlockedPuts++
		if ch.config.OnBlock != nil {
			ch.mu.Unlock()
			ch.config.OnBlock()
			ch.mu.Lock()
		}

		stop := ch.wakeOnDone(ctx, ch.notFull)
		defer stop()

		for ch.count >= len(ch.buffer) && !ch.IsClosed() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ch.notFull.Wait()
		}

		if ch.IsClosed() {
			return gferrors.ErrClosed
		}
	}

	ch.addToBufferLocked(value)
	ch.notEmpty.Signal()
	return nil
}

// TryPut appends value if there is room. It returns ErrCapacityExceeded when
// the buffer is full and ErrClosed after Close.
func (ch *Channel[T]) TryPut(value T) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.IsClosed() {
		return gferrors.ErrClosed
	}
	if ch.count >= len(ch.buffer) {
		return gferrors.ErrCapacityExceeded
	}

	ch.addToBufferLocked(value)
	ch.notEmpty.Signal()
	return nil
}

// Get removes the oldest value, blocking while the buffer is empty.
//
// With timeout > 0 the wait is bounded and ErrEmpty is returned when it
// elapses; with timeout <= 0 Get waits until a value arrives, the channel is
// closed, or ctx is done. Buffered values are still returned after Close; once
// the channel is closed and drained Get returns ErrClosed.
func (ch *Channel[T]) Get(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count == 0 && !ch.IsClosed() {
		waitCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		stop := ch.wakeOnDone(waitCtx, ch.notEmpty)
		defer stop()

		for ch.count == 0 && !ch.IsClosed() {
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			if waitCtx.Err() != nil {
				ch.stats.EmptyPolls++
				return zero, gferrors.ErrEmpty
			}
			ch.notEmpty.Wait()
		}
	}

	if ch.count == 0 {
		return zero, gferrors.ErrClosed
	}

	value := ch.removeFromBufferLocked()
	ch.notFull.Signal()
	return value, nil
}

// TryGet removes the oldest value without blocking. ok is false when the
// buffer is empty; err is ErrClosed once the channel is closed and drained.
func (ch *Channel[T]) TryGet() (value T, ok bool, err error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count == 0 {
		if ch.IsClosed() {
			return value, false, gferrors.ErrClosed
		}
		return value, false, nil
	}

	value = ch.removeFromBufferLocked()
	ch.notFull.Signal()
	return value, true, nil
}

// Close marks the channel closed and wakes every waiter. Further Puts fail;
// buffered values remain available to Get. Close is idempotent.
func (ch *Channel[T]) Close() error {
	if !atomic.CompareAndSwapInt32(&ch.closed, 0, 1) {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.notFull.Broadcast()
	ch.notEmpty.Broadcast()
	return nil
}

// IsClosed returns true once Close was called.
func (ch *Channel[T]) IsClosed() bool {
	return atomic.LoadInt32(&ch.closed) != 0
}

// Len returns the current number of buffered values.
func (ch *Channel[T]) Len() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.count
}

// Cap returns the buffer capacity.
func (ch *Channel[T]) Cap() int {
	return len(ch.buffer)
}

// Stats returns a snapshot of the channel counters.
func (ch *Channel[T]) Stats() Stats {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	stats := ch.stats
	stats.Utilization = float64(ch.count) / float64(len(ch.buffer))
	return stats
}

// wakeOnDone broadcasts on cond when ctx is done so a waiter can observe the
// cancellation. The returned func deregisters the callback.
func (ch *Channel[T]) wakeOnDone(ctx context.Context, cond *sync.Cond) func() bool {
	return context.AfterFunc(ctx, func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		cond.Broadcast()
	})
}

// addToBufferLocked adds a value to the buffer (must hold lock).
func (ch *Channel[T]) addToBufferLocked(value T) {
	ch.buffer[ch.tail] = value
	ch.tail = (ch.tail + 1) % len(ch.buffer)
	ch.count++
	ch.stats.Puts++
	if ch.count > ch.stats.HighWater {
		ch.stats.HighWater = ch.count
	}
}

// removeFromBufferLocked removes a value from the buffer (must hold lock).
func (ch *Channel[T]) removeFromBufferLocked() T {
	value := ch.buffer[ch.head]
	var zero T
	ch.buffer[ch.head] = zero // Clear reference
	ch.head = (ch.head + 1) % len(ch.buffer)
	ch.count--
	ch.stats.Gets++
	return value
}
