/*
Package stopwatch measures elapsed time and event frequency for one pipeline stage.

A Stopwatch tracks two independent things:

  - Elapsed intervals between Start and Stop, summarised as count, running
    average, minimum, maximum and last value.
  - Periods between consecutive Tick calls, summarised as a running average
    and a maximum. Frequency is the reciprocal of the average period.

Averages are running means: after k samples with average a, a new sample x
gives a*k/(k+1) + x/(k+1). No sample history is kept.

Usage:

	sw := stopwatch.New()
	for item := range items {
		sw.Tick()
		sw.Start()
		process(item)
		if _, err := sw.Stop(); err != nil {
			return err
		}
	}
	stats := sw.Stats()
	fmt.Printf("%d items, avg %v, %.1f/s\n", stats.Count, stats.Avg, stats.Frequency)

A Stopwatch is owned by a single stage. Its methods are safe to call from
other goroutines (the metrics reporter reads Stats while the stage runs), but
Start/Stop pairs from two goroutines would interleave meaninglessly.

Time is read through a Clock so tests can drive the stopwatch with a mock.
*/
package stopwatch
