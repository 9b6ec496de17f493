/*
Package scheduling groups the execution side of frameflow:

  - workerpool: fixed pool of annotation workers fed from a bounded channel
  - scheduler: cron-style jobs, used for periodic progress reports
  - pipeline: the coordinator that starts and joins every stage

Most programs only need pipeline:

	p, err := pipeline.New(cfg, src, sink, factory)
	if err != nil {
		return err
	}
	summary, err := p.Run(ctx)

All components take a context for cancellation and are safe for concurrent use.
*/
package scheduling
