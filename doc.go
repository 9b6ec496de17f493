/*
Package frameflow annotates a stream of frames on parallel workers and
emits the results in their original order.

Frames (pkg/frame):
  - Frame, Source, Sink and Annotator, the contracts every stage speaks

Streaming (pkg/streaming):
  - channel: bounded blocking FIFO between stages
  - ingest: numbers frames from a source, optionally throttled
  - reorder: restores input order, skipping failed frames

Scheduling (pkg/scheduling):
  - workerpool: N workers, one annotator each
  - scheduler: cron jobs for periodic progress logs
  - pipeline: the coordinator that runs everything once

Adapters (pkg/adapters):
  - source: image globs and recorded frame logs
  - sink: numbered files, frame logs, Redis streams, log display
  - annotator: delay, HTTP inference service, external process

Timing and metrics:
  - timing/stopwatch: per-stage elapsed time and tick frequency
  - metrics: Prometheus collectors for every stage

Example usage:

	import (
		"github.com/vnykmshr/frameflow/pkg/adapters/annotator"
		"github.com/vnykmshr/frameflow/pkg/adapters/sink"
		"github.com/vnykmshr/frameflow/pkg/adapters/source"
		"github.com/vnykmshr/frameflow/pkg/scheduling/pipeline"
	)

	src, _ := source.Open("frames/*.jpg")
	out, _ := sink.NewDir("annotated", "")
	factory := annotator.NewDelayFactory(annotator.DelayConfig{Delay: 50 * time.Millisecond})

	p, _ := pipeline.New(pipeline.DefaultConfig(), src, out, factory)
	summary, err := p.Run(ctx)
*/
package frameflow
