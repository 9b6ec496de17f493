/*
Package pipeline runs an ordered parallel annotation pipeline.

A Pipeline reads frames from a frame.Source, numbers them, annotates them on
a fixed pool of workers and writes them to a frame.Sink in input order:

	source -> ingest -> input channel -> workers -> output channel -> reorder -> sink

Both channels are bounded by Config.QueueSize, and Config.Window caps the
frames in flight between the source and the sink, which also bounds the
reorder buffer. A slow sink or one slow frame throttles the source instead of
growing memory, and no annotated frame is dropped to make room.

Basic usage:

	p, err := pipeline.New(pipeline.DefaultConfig(), src, sink, factory,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics.DefaultRegistry))
	if err != nil {
		return err
	}
	summary, err := p.Run(ctx)

Stopping:

Shutdown stops reading new frames and lets everything already read reach the
sink. Cancelling the context passed to Run aborts: workers stop, completions
still in flight are counted as abandoned, and Run returns ctx.Err().

Failures:

A frame the annotator fails on is skipped; the sink sees a gap in sequence
numbers and Summary.TransformErrors counts it. A source read error ends
ingestion, the frames already read are drained, and Run returns the error.
*/
package pipeline
