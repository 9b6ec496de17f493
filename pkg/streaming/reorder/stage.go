package reorder

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	gfcontext "github.com/vnykmshr/frameflow/pkg/common/context"
	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
	"github.com/vnykmshr/frameflow/pkg/streaming/credit"
	"github.com/vnykmshr/frameflow/pkg/timing/stopwatch"
)

// DefaultDrainPolls is how many consecutive empty polls end the stage after
// an abort.
const DefaultDrainPolls = 3

// Config controls a reorder stage.
type Config struct {
	// PollInterval bounds each wait on the completion channel.
	PollInterval time.Duration

	// DrainPolls is the number of consecutive empty polls after an abort
	// before the stage gives up on the channel. Defaults to DefaultDrainPolls.
	DrainPolls int

	// MaxPending enables the gap policy: when more completions than this
	// wait in the buffer, the missing head is declared lost and a straggler
	// arriving later is discarded. Zero never declares gaps while running.
	// Prefer bounding the buffer with Credits.
	MaxPending int

	// Credits is the window shared with ingestion. The stage returns one
	// credit per sequence number that leaves the buffer. Nil means none.
	Credits *credit.Window

	// Total is the number of sequence numbers to expect, when known in
	// advance. SetTotal can supply it later.
	Total uint64

	// Name labels metrics and log lines.
	Name string

	// Metrics receives reorder metrics. Nil disables recording.
	Metrics *metrics.Registry

	// Logger receives lifecycle and sink error logs. Nil means no logging.
	Logger *zap.Logger
}

// Progress is a snapshot of the stage counters. It is safe to read while
// the stage runs.
type Progress struct {
	// Next is the sequence number the stage waits for.
	Next uint64

	// Emitted counts frames written to the sink.
	Emitted uint64

	// Failed counts skip markers consumed for frames the annotator failed on.
	Failed uint64

	// Gaps counts sequence numbers declared lost, either on buffer overflow
	// or because they never arrived before the channel closed.
	Gaps uint64

	// Late counts completions that arrived after their sequence number was
	// passed. Duplicates counts repeats of a buffered sequence number.
	Late       uint64
	Duplicates uint64

	// SinkErrors counts frames the sink refused. They are not retried.
	SinkErrors uint64

	// Abandoned counts completions discarded unwritten after an abort.
	Abandoned uint64

	// Pending is the current buffer size, PeakPending its maximum.
	Pending     int64
	PeakPending int64
}

// Report summarises a finished reorder run.
type Report struct {
	Progress
	Aborted bool
	Stats   stopwatch.Stats
}

// Stage consumes completions in any order and writes frames to the sink in
// ascending sequence order.
type Stage struct {
	config Config
	in     *channel.Channel[workerpool.Completion]
	sink   frame.Sink
	buf    *Buffer
	sw     *stopwatch.Stopwatch
	logger *zap.Logger

	total    atomic.Uint64
	hasTotal atomic.Bool

	next        atomic.Uint64
	emitted     atomic.Uint64
	failed      atomic.Uint64
	gaps        atomic.Uint64
	late        atomic.Uint64
	duplicates  atomic.Uint64
	sinkErrors  atomic.Uint64
	abandoned   atomic.Uint64
	pending     atomic.Int64
	peakPending atomic.Int64
}

// New creates a reorder stage reading in and writing to sink.
func New(config Config, in *channel.Channel[workerpool.Completion], sink frame.Sink) (*Stage, error) {
	if err := validation.ValidateNonNegativeInt("reorder", "MaxPending", config.MaxPending); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeInt("reorder", "DrainPolls", config.DrainPolls); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("reorder", "PollInterval", config.PollInterval); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, gferrors.NewValidationError("reorder", "in", nil, "cannot be nil")
	}
	if sink == nil {
		return nil, gferrors.NewValidationError("reorder", "sink", nil, "cannot be nil")
	}
	if config.PollInterval == 0 {
		config.PollInterval = workerpool.DefaultPollInterval
	}
	if config.DrainPolls == 0 {
		config.DrainPolls = DefaultDrainPolls
	}
	if config.Name == "" {
		config.Name = "default"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Stage{
		config: config,
		in:     in,
		sink:   sink,
		buf:    NewBuffer(config.MaxPending),
		sw:     stopwatch.New(),
		logger: logger.With(zap.String("component", "reorder")),
	}
	s.next.Store(1)
	if config.Total > 0 {
		s.SetTotal(config.Total)
	}
	return s, nil
}

// SetTotal fixes the number of sequence numbers the run produced. Once every
// one of them is accounted for, the stage returns without waiting for the
// channel to close.
func (s *Stage) SetTotal(total uint64) {
	s.total.Store(total)
	s.hasTotal.Store(true)
}

// Stopwatch exposes the stage's stopwatch for progress reporting.
func (s *Stage) Stopwatch() *stopwatch.Stopwatch {
	return s.sw
}

// Progress returns a snapshot of the counters.
func (s *Stage) Progress() Progress {
	return Progress{
		Next:        s.next.Load(),
		Emitted:     s.emitted.Load(),
		Failed:      s.failed.Load(),
		Gaps:        s.gaps.Load(),
		Late:        s.late.Load(),
		Duplicates:  s.duplicates.Load(),
		SinkErrors:  s.sinkErrors.Load(),
		Abandoned:   s.abandoned.Load(),
		Pending:     s.pending.Load(),
		PeakPending: s.peakPending.Load(),
	}
}

// Run consumes completions until one of:
//
//   - the channel is closed and drained; remaining buffered frames are then
//     flushed in ascending order and missing sequence numbers count as gaps.
//   - every sequence number up to the total has been emitted or skipped and
//     none was declared lost, so no straggler can still be in flight.
//   - ctx is done and DrainPolls consecutive polls found the channel empty.
//
// Timeouts before any of these just keep waiting. After ctx is done the stage
// keeps consuming, so blocked producers are released, but stops writing.
func (s *Stage) Run(ctx context.Context) Report {
	s.logger.Debug("reorder started",
		zap.Int("max_pending", s.config.MaxPending), zap.Uint64("total", s.total.Load()))

	// Polls must keep their timeout after the abort so that the drain
	// counter measures real quiet time.
	pollCtx := context.WithoutCancel(ctx)
	emptyPolls := 0

	for {
		if s.complete() {
			break
		}

		c, err := s.in.Get(pollCtx, s.config.PollInterval)
		if errors.Is(err, gferrors.ErrEmpty) {
			if ctx.Err() != nil {
				emptyPolls++
				if emptyPolls >= s.config.DrainPolls {
					break
				}
			}
			continue
		}
		if err != nil {
			// Closed and drained.
			s.flushRemaining(ctx)
			break
		}
		emptyPolls = 0

		s.accept(c)
		s.flush(ctx)
	}

	report := Report{
		Progress: s.Progress(),
		Aborted:  ctx.Err() != nil,
		Stats:    s.sw.Stats(),
	}
	s.logger.Info("reorder finished",
		zap.Uint64("emitted", report.Emitted),
		zap.Uint64("failed", report.Failed),
		zap.Uint64("gaps", report.Gaps),
		zap.Uint64("late", report.Late),
		zap.Uint64("sink_errors", report.SinkErrors),
		zap.Bool("aborted", report.Aborted))
	return report
}

// complete reports whether every expected sequence number is accounted for.
func (s *Stage) complete() bool {
	if !s.hasTotal.Load() || s.gaps.Load() > 0 {
		return false
	}
	return s.buf.Next() > s.total.Load()
}

// accept inserts c into the buffer, counting discards.
func (s *Stage) accept(c workerpool.Completion) {
	switch s.buf.Insert(c) {
	case Late:
		s.late.Add(1)
		s.recordSkipped("late", 1)
		s.logger.Debug("late completion discarded", zap.Uint64("seq", c.Seq))
	case Duplicate:
		s.duplicates.Add(1)
		s.recordSkipped("duplicate", 1)
		s.logger.Debug("duplicate completion discarded", zap.Uint64("seq", c.Seq))
	}
	s.trackPending()
}

// flush pops every ready completion. When the buffer overflows, the missing
// head is declared lost and flushing resumes from the buffer minimum.
func (s *Stage) flush(ctx context.Context) {
	for {
		s.popReady(ctx)
		if !s.buf.Overflowing() {
			break
		}
		from := s.buf.Next()
		lost := s.buf.SkipToMin()
		s.gaps.Add(lost)
		s.recordSkipped("gap", lost)
		s.config.Credits.Release(lost)
		s.logger.Warn("reorder buffer full, skipping missing frames",
			zap.Uint64("from", from), zap.Uint64("count", lost), zap.Int("pending", s.buf.Len()))
	}
	s.next.Store(s.buf.Next())
	s.trackPending()
}

// flushRemaining empties the buffer after the channel closed.
func (s *Stage) flushRemaining(ctx context.Context) {
	for s.buf.Len() > 0 {
		lost := s.buf.SkipToMin()
		if lost > 0 {
			s.gaps.Add(lost)
			s.recordSkipped("gap", lost)
			s.config.Credits.Release(lost)
		}
		s.popReady(ctx)
	}
	s.next.Store(s.buf.Next())
	s.trackPending()
}

func (s *Stage) popReady(ctx context.Context) {
	for {
		c, ok := s.buf.PopReady()
		if !ok {
			return
		}
		s.emit(ctx, c)
		s.config.Credits.Release(1)
	}
}

// emit writes one completion, or consumes it as a skip marker.
func (s *Stage) emit(ctx context.Context, c workerpool.Completion) {
	if c.Failed() {
		s.failed.Add(1)
		s.recordSkipped("failed", 1)
		return
	}
	if gfcontext.IsCanceled(ctx) {
		s.abandoned.Add(1)
		return
	}

	s.sw.Tick()
	s.sw.Start()
	err := s.sink.Write(ctx, c.Seq, c.Frame)
	_, _ = s.sw.Stop()

	if err != nil {
		s.sinkErrors.Add(1)
		s.recordSinkError()
		s.logger.Warn("sink write failed", zap.Uint64("seq", c.Seq), zap.Error(err))
		return
	}
	s.emitted.Add(1)
	s.recordEmitted()
}

func (s *Stage) trackPending() {
	n := int64(s.buf.Len())
	s.pending.Store(n)
	if n > s.peakPending.Load() {
		s.peakPending.Store(n)
	}
	if s.config.Metrics != nil {
		s.config.Metrics.ReorderPending.WithLabelValues(s.config.Name).Set(float64(n))
	}
}

func (s *Stage) recordEmitted() {
	if s.config.Metrics != nil {
		s.config.Metrics.FramesEmitted.WithLabelValues(s.config.Name).Inc()
	}
}

func (s *Stage) recordSkipped(reason string, n uint64) {
	if s.config.Metrics != nil && n > 0 {
		s.config.Metrics.FramesSkipped.WithLabelValues(s.config.Name, reason).Add(float64(n))
	}
}

func (s *Stage) recordSinkError() {
	if s.config.Metrics != nil {
		s.config.Metrics.SinkErrors.WithLabelValues(s.config.Name).Inc()
	}
}
