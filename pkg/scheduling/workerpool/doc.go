/*
Package workerpool runs the annotation stage of a frame pipeline.

A Pool owns N workers. Each worker acquires its own annotator from a
frame.AnnotatorFactory when the pool starts and releases it exactly once when
the worker exits, whatever the reason. Annotators are therefore never shared
between goroutines and may hold per-worker state such as a model session or an
HTTP client.

Basic usage:

	in := channel.New[frame.SequencedItem](5)
	out := channel.New[workerpool.Completion](5)

	pool, err := workerpool.New(workerpool.Config{Workers: 4}, factory, in, out)
	if err != nil {
		return err
	}
	if err := pool.Start(ctx, shutdown); err != nil {
		return err // annotator acquisition failed, nothing is running
	}

	// ... feed in, drain out ...

	cancelShutdown()
	pool.Wait()
	out.Close()

Worker Loop:

Every worker polls the input channel with PollInterval as timeout:

  - A frame arrived: Tick and time the annotator, then Put a Completion on
    the output channel. The Put blocks while the output is full.
  - The poll came back empty: exit if the shutdown context is done,
    otherwise poll again.
  - The input channel is closed and drained, or the abort context is done:
    exit.

Shutdown is a two-signal protocol. The abort context (ctx) stops everything
promptly, including a blocked output Put. The shutdown context only asks the
workers to finish: they keep draining the input channel and exit on the first
empty poll after it is done. Because an empty poll is required, no frame that
made it into the input channel is left behind on a graceful shutdown.

Failure Isolation:

An annotator error or panic affects only the frame being processed. The worker
emits a Completion whose Err is a *errors.TransformationError carrying the
sequence number, then continues with the next frame. Downstream, such a
completion acts as a skip marker so the reorder stage does not wait for a frame
that will never arrive.

	if c.Failed() {
		var terr *errors.TransformationError
		errors.As(c.Err, &terr) // terr.Seq, terr.WorkerID
	}

Observability:

  - Per-worker stopwatch snapshots via WorkerStats (annotate time and rate).
  - Processed, Failed and ActiveWorkers counters.
  - Lifecycle hooks OnWorkerStart, OnWorkerStop and OnItemComplete.
  - Prometheus metrics when Config.Metrics is set.
  - Structured logs through Config.Logger.

Thread Safety:

All Pool methods are safe for concurrent use. Start may be called once.
*/
package workerpool
