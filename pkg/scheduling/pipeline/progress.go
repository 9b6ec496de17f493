package pipeline

import (
	"go.uber.org/zap"
)

// Progress is a live snapshot of a running pipeline.
type Progress struct {
	RunID         string
	Ingested      uint64
	Annotated     int64
	Failed        int64
	Emitted       uint64
	Gaps          uint64
	Skipped       uint64
	Next          uint64
	Pending       int64
	InputDepth    int
	OutputDepth   int
	ActiveWorkers int
	IngestFPS     float64
	OutputFPS     float64

	// Expected is 0 when the source cannot tell its length.
	Expected uint64
}

// Percent reports how much of the expected input has left the reorder
// stage, counting skipped frames as done.
func (pr Progress) Percent() (float64, bool) {
	if pr.Expected == 0 {
		return 0, false
	}
	done := pr.Emitted + pr.Skipped
	return 100 * float64(done) / float64(pr.Expected), true
}

func (r *run) progress() Progress {
	rp := r.reorder.Progress()
	ingestStats := r.ingest.Stopwatch().Stats()
	outputStats := r.reorder.Stopwatch().Stats()
	return Progress{
		RunID:         r.id,
		Ingested:      ingestStats.Ticks,
		Annotated:     r.pool.Processed(),
		Failed:        r.pool.Failed(),
		Emitted:       rp.Emitted,
		Gaps:          rp.Gaps,
		Skipped:       rp.Failed + rp.Gaps,
		Next:          rp.Next,
		Pending:       rp.Pending,
		InputDepth:    r.in.Len(),
		OutputDepth:   r.out.Len(),
		ActiveWorkers: r.pool.ActiveWorkers(),
		IngestFPS:     ingestStats.Frequency,
		OutputFPS:     outputStats.Frequency,
		Expected:      r.expected,
	}
}

func (pr Progress) fields() []zap.Field {
	fields := []zap.Field{
		zap.Uint64("ingested", pr.Ingested),
		zap.Int64("annotated", pr.Annotated),
		zap.Int64("failed", pr.Failed),
		zap.Uint64("emitted", pr.Emitted),
		zap.Uint64("next", pr.Next),
		zap.Int64("pending", pr.Pending),
		zap.Int("input_depth", pr.InputDepth),
		zap.Int("output_depth", pr.OutputDepth),
		zap.Int("active_workers", pr.ActiveWorkers),
		zap.Float64("ingest_fps", pr.IngestFPS),
		zap.Float64("output_fps", pr.OutputFPS),
	}
	if pct, ok := pr.Percent(); ok {
		fields = append(fields, zap.Float64("percent", pct))
	}
	return fields
}
