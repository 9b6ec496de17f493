// Package ingest reads frames from a source, numbers them and feeds the
// pipeline's input channel.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
	"github.com/vnykmshr/frameflow/pkg/streaming/credit"
	"github.com/vnykmshr/frameflow/pkg/timing/stopwatch"
)

// StopReason says why ingestion ended.
type StopReason int

const (
	// Exhausted means the source returned io.EOF or the frame limit was reached.
	Exhausted StopReason = iota

	// Shutdown means the shutdown context was done.
	Shutdown

	// Aborted means the abort context was done.
	Aborted

	// SourceFailed means ReadNext returned an error other than io.EOF.
	SourceFailed

	// Closed means the input channel was closed underneath the stage.
	Closed
)

func (r StopReason) String() string {
	switch r {
	case Exhausted:
		return "exhausted"
	case Shutdown:
		return "shutdown"
	case Aborted:
		return "aborted"
	case SourceFailed:
		return "source-failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Config controls an ingestion stage.
type Config struct {
	// MaxFPS caps the read rate in frames per second. Zero reads as fast as
	// the input channel accepts.
	MaxFPS float64

	// Limit stops ingestion after this many frames. Zero means no limit.
	Limit uint64

	// Credits bounds the frames in flight. One credit is taken before each
	// read and returned downstream. Nil means unbounded.
	Credits *credit.Window

	// Name labels metrics and log lines.
	Name string

	// Metrics receives ingestion metrics. Nil disables recording.
	Metrics *metrics.Registry

	// Logger receives start, stop and source error logs. Nil means no logging.
	Logger *zap.Logger
}

// Report summarises a finished ingestion run.
type Report struct {
	// Count is the number of frames put on the input channel. It is also the
	// highest sequence number assigned.
	Count   uint64
	Reason  StopReason
	Err     error
	Elapsed time.Duration
	Stats   stopwatch.Stats
}

// Stage is the ingestion stage. It is run once.
type Stage struct {
	config  Config
	source  frame.Source
	out     *channel.Channel[frame.SequencedItem]
	limiter *rate.Limiter
	sw      *stopwatch.Stopwatch
	logger  *zap.Logger
}

// New creates an ingestion stage reading source into out.
func New(config Config, source frame.Source, out *channel.Channel[frame.SequencedItem]) (*Stage, error) {
	if err := validation.ValidateNonNegative("ingest", "MaxFPS", config.MaxFPS); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("ingest", "source", source); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, gferrors.NewValidationError("ingest", "out", nil, "cannot be nil")
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
		source: source,
		out:    out,
		sw:     stopwatch.New(),
		logger: logger.With(zap.String("component", "ingest")),
	}
	if config.MaxFPS > 0 {
		// Burst of one spaces frames evenly, like a camera would.
		s.limiter = rate.NewLimiter(rate.Limit(config.MaxFPS), 1)
	}
	return s, nil
}

// Stopwatch exposes the stage's stopwatch for progress reporting.
func (s *Stage) Stopwatch() *stopwatch.Stopwatch {
	return s.sw
}

// Run reads frames until the source is exhausted, the limit is hit, shutdown
// or ctx is done, or the source fails. Sequence numbers start at 1 and are
// assigned in read order. Each read waits for a credit when Credits is set,
// and each Put blocks while the input channel is full.
//
// Run does not close the source or the channel; the caller owns both.
func (s *Stage) Run(ctx, shutdown context.Context) Report {
	start := time.Now()
	s.sw.Start()
	s.logger.Debug("ingestion started",
		zap.Float64("max_fps", s.config.MaxFPS), zap.Uint64("limit", s.config.Limit))

	report := s.run(ctx, shutdown)

	elapsed, _ := s.sw.Stop()
	report.Elapsed = elapsed
	report.Stats = s.sw.Stats()

	fields := []zap.Field{
		zap.Uint64("frames", report.Count),
		zap.Stringer("reason", report.Reason),
		zap.Duration("elapsed", time.Since(start)),
	}
	if freq, ok := s.sw.Frequency(); ok {
		fields = append(fields, zap.Float64("fps", freq))
	}
	if report.Err != nil {
		fields = append(fields, zap.Error(report.Err))
		s.logger.Warn("ingestion stopped", fields...)
	} else {
		s.logger.Info("ingestion finished", fields...)
	}
	return report
}

func (s *Stage) run(ctx, shutdown context.Context) Report {
	var seq uint64
	for {
		if s.config.Limit > 0 && seq >= s.config.Limit {
			return Report{Count: seq, Reason: Exhausted}
		}
		if reason, done := s.stopped(ctx, shutdown); done {
			return Report{Count: seq, Reason: reason}
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(shutdown); err != nil {
				reason, _ := s.stopped(ctx, shutdown)
				return Report{Count: seq, Reason: reason}
			}
		}

		if err := s.config.Credits.Wait(shutdown); err != nil {
			reason, _ := s.stopped(ctx, shutdown)
			return Report{Count: seq, Reason: reason}
		}

		f, err := s.source.ReadNext(shutdown)
		if err != nil {
			s.config.Credits.Release(1)
		}
		if errors.Is(err, io.EOF) {
			return Report{Count: seq, Reason: Exhausted}
		}
		if err != nil {
			if reason, done := s.stopped(ctx, shutdown); done {
				return Report{Count: seq, Reason: reason}
			}
			s.recordSourceError()
			return Report{Count: seq, Reason: SourceFailed, Err: fmt.Errorf("read frame %d: %w", seq+1, err)}
		}

		s.sw.Tick()
		item := frame.SequencedItem{Seq: seq + 1, Frame: f}
		if err := s.out.Put(ctx, item); err != nil {
			s.config.Credits.Release(1)
			if errors.Is(err, gferrors.ErrClosed) {
				return Report{Count: seq, Reason: Closed, Err: err}
			}
			return Report{Count: seq, Reason: Aborted}
		}
		seq++
		s.recordIngested()
	}
}

// stopped checks the two stop signals. Abort wins over shutdown.
func (s *Stage) stopped(ctx, shutdown context.Context) (StopReason, bool) {
	if ctx.Err() != nil {
		return Aborted, true
	}
	if shutdown.Err() != nil {
		return Shutdown, true
	}
	return Exhausted, false
}

func (s *Stage) recordIngested() {
	if s.config.Metrics != nil {
		s.config.Metrics.FramesIngested.WithLabelValues(s.config.Name).Inc()
	}
}

func (s *Stage) recordSourceError() {
	if s.config.Metrics != nil {
		s.config.Metrics.SourceErrors.WithLabelValues(s.config.Name).Inc()
	}
}
