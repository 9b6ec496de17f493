package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of periodic work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context)

// Entry describes a scheduled job.
type Entry struct {
	ID         string
	Expression string
	Next       time.Time
	Prev       time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// Location is the time zone used to evaluate expressions (default: time.Local).
	Location *time.Location

	// Logger receives job panics and skipped runs. Nil means no logging.
	Logger *zap.Logger
}

// Scheduler runs jobs on cron expressions. Overlapping runs of the same job
// are skipped and job panics are recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]scheduled
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

type scheduled struct {
	id   cron.EntryID
	expr string
}

// parser accepts an optional seconds field and descriptors such as "@every 5s".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"))

	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(location),
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    c,
		parser:  parser,
		logger:  logger,
		entries: make(map[string]scheduled),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ValidateExpression reports whether expr parses.
func ValidateExpression(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}
	return nil
}

// Schedule registers job under id. It may be called before or after Start.
func (s *Scheduler) Schedule(id, expr string, job Job) error {
	if id == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("job with ID %q already exists, cancel it first", id)
	}

	ctx := s.ctx
	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	}))
	s.entries[id] = scheduled{id: entryID, expr: expr}
	return nil
}

// Cancel removes the job registered under id.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, id)
	return true
}

// List returns the registered jobs ordered by ID.
func (s *Scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Entry{ID: id, Expression: e.expr, Next: ce.Next, Prev: ce.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler already stopped")
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.cron.Start()
	return nil
}

// Stop halts scheduling, cancels the job context and returns a channel that
// closes once running jobs have returned.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := make(chan struct{})
	stopCtx := s.cron.Stop()
	go func() {
		<-stopCtx.Done()
		close(done)
	}()
	return done
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
