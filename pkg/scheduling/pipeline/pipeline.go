package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
	"github.com/vnykmshr/frameflow/pkg/streaming/credit"
	"github.com/vnykmshr/frameflow/pkg/streaming/ingest"
	"github.com/vnykmshr/frameflow/pkg/streaming/reorder"
)

// Pipeline wires source, ingestion, worker pool, reorder stage and sink.
// A Pipeline runs once.
type Pipeline struct {
	config  Config
	source  frame.Source
	sink    frame.Sink
	factory frame.AnnotatorFactory
	logger  *zap.Logger
	metrics *metrics.Registry

	onItem        func(workerID int, c workerpool.Completion)
	onWorkerStart func(workerID int)
	onWorkerStop  func(workerID int)

	mu       sync.Mutex
	ran      bool
	stopping bool
	shutdown context.CancelFunc
	run      *run
}

// run holds the live stages of an in-flight run.
type run struct {
	id      string
	in      *channel.Channel[frame.SequencedItem]
	out     *channel.Channel[workerpool.Completion]
	ingest  *ingest.Stage
	pool    *workerpool.Pool
	reorder *reorder.Stage
	credits *credit.Window

	// expected is the number of frames the run will ingest, 0 when unknown.
	expected uint64
}

// New validates the configuration and creates a pipeline. Nothing starts
// until Run. The caller keeps ownership of source and sink and closes them
// after Run returns.
func New(config Config, source frame.Source, sink frame.Sink, factory frame.AnnotatorFactory, opts ...Option) (*Pipeline, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("pipeline", "source", source); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("pipeline", "sink", sink); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, gferrors.NewValidationError("pipeline", "factory", nil, "cannot be nil")
	}

	p := &Pipeline{
		config:  config,
		source:  source,
		sink:    sink,
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Shutdown asks a running pipeline to stop reading new frames. Frames already
// read are still annotated and written. Calling Shutdown before Run makes Run
// drain immediately; calling it again has no effect.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopping = true
	if p.shutdown != nil {
		p.shutdown()
	}
}

// Run executes the pipeline and blocks until every stage has finished.
//
// The sequence is: start the reorder stage and the workers, run ingestion to
// completion, signal shutdown, join the workers, close the output channel,
// join the reorder stage. Cancelling ctx aborts the run; every stage then
// returns within a few poll intervals.
//
// Errors from setup (annotator acquisition) are returned before any frame is
// read. A failing source ends ingestion early and is returned after the
// frames already read have been drained. Per-frame annotator and sink
// failures are only counted in the Summary.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return Summary{}, fmt.Errorf("pipeline %q already ran", p.config.Name)
	}
	p.ran = true
	shutdownCtx, shutdown := context.WithCancel(ctx)
	p.shutdown = shutdown
	if p.stopping {
		shutdown()
	}
	p.mu.Unlock()
	defer shutdown()

	start := time.Now()
	r, err := p.build()
	if err != nil {
		return Summary{}, err
	}
	logger := p.logger.With(zap.String("run_id", r.id), zap.String("pipeline", p.config.Name))

	total, known := p.source.TotalCount()
	if p.config.Limit > 0 && (!known || p.config.Limit < total) {
		total, known = p.config.Limit, true
	}
	fields := []zap.Field{
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
		zap.Int("window", p.config.EffectiveWindow()),
		zap.Int("max_pending", p.config.MaxPending),
	}
	if known {
		r.expected = total
		fields = append(fields, zap.Uint64("expected_frames", total))
	}
	logger.Info("pipeline starting", fields...)

	if err := r.pool.Start(ctx, shutdownCtx); err != nil {
		logger.Error("worker pool failed to start", zap.Error(err))
		p.recordRun("failed", start)
		return Summary{RunID: r.id}, err
	}

	p.mu.Lock()
	p.run = r
	p.mu.Unlock()

	reorderDone := make(chan reorder.Report, 1)
	go func() {
		reorderDone <- r.reorder.Run(ctx)
	}()

	reporter := p.startReporter(r, logger)

	ingestReport := r.ingest.Run(ctx, shutdownCtx)
	r.reorder.SetTotal(ingestReport.Count)
	shutdown()

	r.pool.Wait()
	_ = r.out.Close()
	reorderReport := <-reorderDone
	_ = r.in.Close()

	if reporter != nil {
		<-reporter.Stop()
	}

	summary := Summary{
		RunID:           r.id,
		Ingested:        ingestReport.Count,
		Emitted:         reorderReport.Emitted,
		TransformErrors: reorderReport.Failed,
		Gaps:            reorderReport.Gaps,
		Late:            reorderReport.Late,
		Duplicates:      reorderReport.Duplicates,
		SinkErrors:      reorderReport.SinkErrors,
		Abandoned:       reorderReport.Abandoned,
		PeakPending:     reorderReport.PeakPending,
		StopReason:      ingestReport.Reason,
		Aborted:         ingestReport.Reason == ingest.Aborted || reorderReport.Aborted,
		Elapsed:         time.Since(start),
		Ingest:          ingestReport.Stats,
		Workers:         r.pool.WorkerStats(),
		Output:          reorderReport.Stats,
		InputChannel:    r.in.Stats(),
		OutputChannel:   r.out.Stats(),
	}
	p.recordDepths(r)

	switch {
	case summary.Aborted:
		logger.Warn("pipeline aborted", summary.Field())
		p.recordRun("aborted", start)
		return summary, ctx.Err()
	case ingestReport.Err != nil:
		logger.Error("pipeline stopped on source failure", summary.Field(), zap.Error(ingestReport.Err))
		p.recordRun("failed", start)
		return summary, gferrors.NewOperationError("pipeline", "Run", ingestReport.Err).
			WithContext(fmt.Sprintf("after %d frames", ingestReport.Count))
	default:
		logger.Info("pipeline finished", summary.Field())
		p.recordRun("ok", start)
		return summary, nil
	}
}

// Progress returns live counters of the current run. ok is false before Run
// has started the stages.
func (p *Pipeline) Progress() (Progress, bool) {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return Progress{}, false
	}
	return r.progress(), true
}

// build creates channels and stages for one run.
func (p *Pipeline) build() (*run, error) {
	name := p.config.Name
	r := &run{id: uuid.NewString(), credits: credit.New(p.config.EffectiveWindow())}

	r.in = channel.NewWithConfig[frame.SequencedItem](channel.Config{
		BufferSize: p.config.QueueSize,
		OnBlock:    p.backpressureHook("input"),
	})
	r.out = channel.NewWithConfig[workerpool.Completion](channel.Config{
		BufferSize: p.config.QueueSize,
		OnBlock:    p.backpressureHook("output"),
	})

	var err error
	r.ingest, err = ingest.New(ingest.Config{
		MaxFPS:  p.config.MaxFPS,
		Limit:   p.config.Limit,
		Credits: r.credits,
		Name:    name,
		Metrics: p.metrics,
		Logger:  p.logger,
	}, p.source, r.in)
	if err != nil {
		return nil, err
	}

	r.pool, err = workerpool.New(workerpool.Config{
		Workers:        p.config.Workers,
		PollInterval:   p.config.PollInterval,
		TaskTimeout:    p.config.TaskTimeout,
		Name:           name,
		Metrics:        p.metrics,
		Logger:         p.logger,
		OnWorkerStart:  p.onWorkerStart,
		OnWorkerStop:   p.onWorkerStop,
		OnItemComplete: p.onItem,
		PanicHandler: func(workerID int, seq uint64, recovered interface{}) {
			p.logger.Error("annotator panicked",
				zap.Int("worker", workerID), zap.Uint64("seq", seq), zap.Any("panic", recovered))
		},
	}, p.factory, r.in, r.out)
	if err != nil {
		return nil, err
	}

	r.reorder, err = reorder.New(reorder.Config{
		PollInterval: p.config.PollInterval,
		DrainPolls:   p.config.DrainPolls,
		MaxPending:   p.config.MaxPending,
		Credits:      r.credits,
		Name:         name,
		Metrics:      p.metrics,
		Logger:       p.logger,
	}, r.out, p.sink)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Pipeline) backpressureHook(ch string) func() {
	if p.metrics == nil {
		return nil
	}
	counter := p.metrics.BackpressureEvents.WithLabelValues(p.config.Name, ch)
	return counter.Inc
}

// startReporter schedules the periodic progress log. It returns nil when
// reporting is disabled.
func (p *Pipeline) startReporter(r *run, logger *zap.Logger) *scheduler.Scheduler {
	if p.config.ReportEvery == "" {
		return nil
	}
	s := scheduler.New(scheduler.Config{Logger: logger})
	err := s.Schedule("progress", p.config.ReportEvery, func(context.Context) {
		logger.Info("progress", r.progress().fields()...)
		p.recordDepths(r)
	})
	if err == nil {
		err = s.Start()
	}
	if err != nil {
		logger.Warn("progress reporting disabled", zap.Error(err))
		return nil
	}
	return s
}

func (p *Pipeline) recordRun(outcome string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.Runs.WithLabelValues(p.config.Name, outcome).Inc()
	p.metrics.RunDuration.WithLabelValues(p.config.Name).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) recordDepths(r *run) {
	if p.metrics == nil {
		return
	}
	p.metrics.ChannelDepth.WithLabelValues(p.config.Name, "input").Set(float64(r.in.Len()))
	p.metrics.ChannelDepth.WithLabelValues(p.config.Name, "output").Set(float64(r.out.Len()))
}
