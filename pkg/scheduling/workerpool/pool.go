package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	gfcontext "github.com/vnykmshr/frameflow/pkg/common/context"
	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
	"github.com/vnykmshr/frameflow/pkg/timing/stopwatch"
)

// DefaultPollInterval is how long a worker waits on an empty input channel
// before checking for shutdown.
const DefaultPollInterval = 100 * time.Millisecond

// Completion is the outcome of annotating one sequenced frame.
type Completion struct {
	// Seq is the sequence number assigned at ingestion.
	Seq uint64

	// Frame is the annotated frame. Nil when Err is set.
	Frame *frame.Frame

	// Err is a *errors.TransformationError when the annotator failed. A
	// completion carrying an error is a skip marker for the reorder stage.
	Err error

	// WorkerID identifies which worker produced the completion.
	WorkerID int

	// Duration is how long the annotator took.
	Duration time.Duration
}

// Failed reports whether the completion is a skip marker.
func (c Completion) Failed() bool {
	return c.Err != nil
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Workers is the number of workers in the pool.
	// Must be greater than 0.
	Workers int

	// PollInterval bounds each wait on the input channel. Between polls a
	// worker checks the shutdown context. Defaults to DefaultPollInterval.
	PollInterval time.Duration

	// TaskTimeout is the maximum time a single Annotate call may take.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// Name labels the pool's metrics and log lines.
	Name string

	// Metrics receives pool metrics. Nil disables recording.
	Metrics *metrics.Registry

	// Logger receives lifecycle and per-item failure logs. Nil means no logging.
	Logger *zap.Logger

	// PanicHandler is called when an annotator panics. The panic is always
	// recovered and turned into a failed completion.
	PanicHandler func(workerID int, seq uint64, recovered interface{})

	// OnWorkerStart is called when a worker starts, after its annotator was acquired.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops, after its annotator was released.
	OnWorkerStop func(workerID int)

	// OnItemComplete is called after each frame, success or failure, before
	// the completion is handed to the output channel.
	OnItemComplete func(workerID int, c Completion)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "Workers", c.Workers); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("workerpool", "PollInterval", c.PollInterval); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("workerpool", "TaskTimeout", c.TaskTimeout)
}

// Pool runs a fixed set of workers, each owning one annotator, between an
// input and an output channel.
type Pool struct {
	config  Config
	factory frame.AnnotatorFactory
	in      *channel.Channel[frame.SequencedItem]
	out     *channel.Channel[Completion]
	logger  *zap.Logger

	workers   []*worker
	workerWg  sync.WaitGroup
	startOnce sync.Once
	started   atomic.Bool

	active    int64
	processed int64
	failed    int64
}

// worker represents a single worker in the pool.
type worker struct {
	id        int
	pool      *Pool
	annotator frame.Annotator
	stopwatch *stopwatch.Stopwatch
}

// New creates a pool reading from in and writing to out. Annotators are not
// acquired until Start.
func New(config Config, factory frame.AnnotatorFactory, in *channel.Channel[frame.SequencedItem], out *channel.Channel[Completion]) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, gferrors.NewValidationError("workerpool", "factory", nil, "cannot be nil")
	}
	if in == nil || out == nil {
		return nil, gferrors.NewValidationError("workerpool", "channels", nil, "input and output channels are required")
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Name == "" {
		config.Name = "default"
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		config:  config,
		factory: factory,
		in:      in,
		out:     out,
		logger:  logger.With(zap.String("component", "workerpool")),
	}, nil
}

// Start acquires one annotator per worker and launches the workers.
//
// ctx is the abort signal: when it is done workers stop immediately, even
// mid-queue. shutdown is the drain signal: once it is done a worker exits the
// first time a poll of the input channel comes back empty.
//
// If any annotator cannot be acquired, the ones already acquired are released
// and no worker is started. Start may only be called once.
func (p *Pool) Start(ctx, shutdown context.Context) error {
	err := fmt.Errorf("workerpool %q already started", p.config.Name)
	p.startOnce.Do(func() {
		err = p.start(ctx, shutdown)
	})
	return err
}

func (p *Pool) start(ctx, shutdown context.Context) error {
	workers := make([]*worker, 0, p.config.Workers)
	for i := 0; i < p.config.Workers; i++ {
		ann, err := p.factory(i)
		if err == nil && ann == nil {
			err = errors.New("factory returned nil annotator")
		}
		if err != nil {
			for _, w := range workers {
				_ = w.annotator.Close()
			}
			return gferrors.NewOperationError("workerpool", "Start", err).
				WithContext(fmt.Sprintf("worker %d", i))
		}
		workers = append(workers, &worker{
			id:        i,
			pool:      p,
			annotator: ann,
			stopwatch: stopwatch.New(),
		})
	}

	p.workers = workers
	p.started.Store(true)
	for _, w := range workers {
		p.workerWg.Add(1)
		go w.run(ctx, shutdown)
	}
	return nil
}

// Wait blocks until every worker has exited and released its annotator.
func (p *Pool) Wait() {
	p.workerWg.Wait()
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.config.Workers
}

// ActiveWorkers returns the number of workers that have not exited yet.
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt64(&p.active))
}

// Processed returns the number of frames annotated successfully.
func (p *Pool) Processed() int64 {
	return atomic.LoadInt64(&p.processed)
}

// Failed returns the number of frames the annotator failed on.
func (p *Pool) Failed() int64 {
	return atomic.LoadInt64(&p.failed)
}

// WorkerStats returns a stopwatch snapshot per worker, indexed by worker ID.
// It is empty before Start.
func (p *Pool) WorkerStats() []stopwatch.Stats {
	if !p.started.Load() {
		return nil
	}
	stats := make([]stopwatch.Stats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.stopwatch.Stats()
	}
	return stats
}

// run is the main loop for a worker.
func (w *worker) run(ctx, shutdown context.Context) {
	p := w.pool
	defer p.workerWg.Done()

	atomic.AddInt64(&p.active, 1)
	p.recordActive(1)
	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	p.logger.Debug("worker started", zap.Int("worker", w.id))

	defer func() {
		if err := w.annotator.Close(); err != nil {
			p.logger.Warn("annotator close failed", zap.Int("worker", w.id), zap.Error(err))
		}
		atomic.AddInt64(&p.active, -1)
		p.recordActive(-1)
		if p.config.OnWorkerStop != nil {
			p.config.OnWorkerStop(w.id)
		}
		p.logger.Debug("worker stopped", zap.Int("worker", w.id))
	}()

	for {
		item, err := p.in.Get(ctx, p.config.PollInterval)
		switch {
		case err == nil:
			c := w.process(ctx, item)
			if err := p.out.Put(ctx, c); err != nil {
				return
			}
		case errors.Is(err, gferrors.ErrEmpty):
			if shutdown.Err() != nil {
				return
			}
		default:
			// ErrClosed or abort
			return
		}
	}
}

// process annotates one frame and builds its completion.
func (w *worker) process(ctx context.Context, item frame.SequencedItem) Completion {
	p := w.pool

	w.stopwatch.Tick()
	w.stopwatch.Start()
	out, err := w.annotate(ctx, item)
	elapsed, _ := w.stopwatch.Stop()

	c := Completion{
		Seq:      item.Seq,
		WorkerID: w.id,
		Duration: elapsed,
	}
	if err != nil {
		c.Err = gferrors.NewTransformationError(item.Seq, w.id, err)
		atomic.AddInt64(&p.failed, 1)
		p.logger.Debug("annotate failed",
			zap.Uint64("seq", item.Seq), zap.Int("worker", w.id), zap.Error(err))
	} else {
		c.Frame = out
		atomic.AddInt64(&p.processed, 1)
	}
	p.recordCompletion(c)

	if p.config.OnItemComplete != nil {
		p.config.OnItemComplete(w.id, c)
	}
	return c
}

// annotate runs the annotator with panic recovery and the optional timeout.
func (w *worker) annotate(ctx context.Context, item frame.SequencedItem) (out *frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			if w.pool.config.PanicHandler != nil {
				w.pool.config.PanicHandler(w.id, item.Seq, r)
			}
			out, err = nil, fmt.Errorf("annotator panicked: %v", r)
		}
	}()

	ctx, cancel := gfcontext.WithTimeoutOrCancel(ctx, w.pool.config.TaskTimeout)
	defer cancel()

	out, err = w.annotator.Annotate(ctx, item.Frame)
	if err != nil && gfcontext.IsTimedOut(ctx) {
		err = fmt.Errorf("annotate exceeded %s: %w", w.pool.config.TaskTimeout, err)
	}
	if err == nil && out == nil {
		err = errors.New("annotator returned no frame")
	}
	return out, err
}
