/*
Package channel provides the bounded hand-off queue between pipeline stages.

A Channel is a fixed-capacity FIFO built on a ring buffer and two condition
variables. It exists instead of a plain Go channel because the pipeline needs
three things a built-in channel does not give directly:

  - Get with a poll timeout that reports "nothing arrived" as ErrEmpty, so a
    worker can check the shutdown signal between polls.
  - Values that remain readable after Close, with ErrClosed reported only once
    the buffer is drained.
  - Traffic counters (puts, gets, blocked puts, empty polls, high-water mark)
    for metrics and run summaries.

Backpressure:

Put blocks while the buffer is full. This is the only flow control in the
pipeline: a slow sink fills the output channel, which blocks the workers,
which fills the input channel, which blocks ingestion.

	ch := channel.New[int](5)

	// producer
	if err := ch.Put(ctx, 42); err != nil {
		return err // ctx error or ErrClosed
	}

	// consumer
	v, err := ch.Get(ctx, 100*time.Millisecond)
	switch {
	case errors.Is(err, errors.ErrEmpty):
		// poll elapsed, check for shutdown and retry
	case errors.Is(err, errors.ErrClosed):
		// closed and drained
	}

Cancellation:

Both Put and Get wake up as soon as their context is done, even while parked
on the condition variable. The context error is returned unchanged.

Thread Safety:

All methods are safe for concurrent use by multiple producers and consumers.
*/
package channel
