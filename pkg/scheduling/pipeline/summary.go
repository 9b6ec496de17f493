package pipeline

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
	"github.com/vnykmshr/frameflow/pkg/streaming/ingest"
	"github.com/vnykmshr/frameflow/pkg/timing/stopwatch"
)

// Summary describes a finished run.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string

	// Ingested is the number of frames read and numbered.
	Ingested uint64

	// Emitted is the number of frames written to the sink.
	Emitted uint64

	// TransformErrors is the number of frames the annotator failed on.
	TransformErrors uint64

	// Gaps is the number of sequence numbers the reorder stage declared lost.
	Gaps uint64

	// Late is the number of completions discarded because their sequence
	// number was already passed; Duplicates those repeating a buffered one.
	Late       uint64
	Duplicates uint64

	// SinkErrors is the number of frames the sink refused.
	SinkErrors uint64

	// Abandoned is the number of completions dropped unwritten after an abort.
	Abandoned uint64

	// PeakPending is the largest reorder buffer size observed.
	PeakPending int64

	// StopReason says why ingestion ended.
	StopReason ingest.StopReason

	// Aborted is true when the caller's context ended the run.
	Aborted bool

	Elapsed time.Duration

	// Per-stage timing.
	Ingest  stopwatch.Stats
	Workers []stopwatch.Stats
	Output  stopwatch.Stats

	// Channel traffic.
	InputChannel  channel.Stats
	OutputChannel channel.Stats
}

// Complete reports whether every ingested frame was written.
func (s Summary) Complete() bool {
	return s.Emitted == s.Ingested
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", s.RunID)
	enc.AddUint64("ingested", s.Ingested)
	enc.AddUint64("emitted", s.Emitted)
	enc.AddUint64("transform_errors", s.TransformErrors)
	enc.AddUint64("gaps", s.Gaps)
	enc.AddUint64("late", s.Late+s.Duplicates)
	enc.AddUint64("sink_errors", s.SinkErrors)
	enc.AddString("stop_reason", s.StopReason.String())
	enc.AddBool("aborted", s.Aborted)
	enc.AddDuration("elapsed", s.Elapsed)
	if s.Ingest.Frequency > 0 {
		enc.AddFloat64("ingest_fps", s.Ingest.Frequency)
	}
	if s.Output.Frequency > 0 {
		enc.AddFloat64("output_fps", s.Output.Frequency)
	}
	var annotated uint64
	var busy time.Duration
	for _, w := range s.Workers {
		annotated += w.Count
		busy += time.Duration(w.Count) * w.Avg
	}
	if annotated > 0 {
		enc.AddDuration("annotate_avg", busy/time.Duration(annotated))
	}
	enc.AddInt("input_high_water", s.InputChannel.HighWater)
	enc.AddInt("output_high_water", s.OutputChannel.HighWater)
	enc.AddInt64("peak_pending", s.PeakPending)
	return nil
}

// Field returns the summary as a single zap field.
func (s Summary) Field() zap.Field {
	return zap.Object("summary", s)
}
