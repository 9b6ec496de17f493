package stopwatch

import (
	"sync"
	"time"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Stats is a snapshot of a Stopwatch.
type Stats struct {
	// Count is the number of completed Start/Stop intervals.
	Count uint64
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Last  time.Duration

	// Ticks is the number of Tick calls since the last Reset.
	Ticks     uint64
	Periods   uint64
	AvgPeriod time.Duration
	MaxPeriod time.Duration

	// Frequency is 1/AvgPeriod in events per second, zero until a period exists.
	Frequency float64
}

// Stopwatch accumulates interval and tick statistics.
type Stopwatch struct {
	mu    sync.Mutex
	clock Clock

	started time.Time
	running bool

	count uint64
	avg   float64 // nanoseconds
	min   time.Duration
	max   time.Duration
	last  time.Duration

	ticks     uint64
	lastTick  time.Time
	periods   uint64
	avgPeriod float64 // nanoseconds
	maxPeriod time.Duration
}

// New creates a Stopwatch reading the wall clock.
func New() *Stopwatch {
	return NewWithClock(wallClock{})
}

// NewWithClock creates a Stopwatch reading the given clock.
func NewWithClock(clock Clock) *Stopwatch {
	if clock == nil {
		clock = wallClock{}
	}
	return &Stopwatch{clock: clock}
}

// Start begins an interval. Calling Start again restarts it.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	s.started = s.clock.Now()
	s.running = true
	s.mu.Unlock()
}

// Stop ends the current interval, folds it into the statistics and returns it.
// It returns ErrNotStarted if Start was not called since the last Stop or Reset.
func (s *Stopwatch) Stop() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0, gferrors.ErrNotStarted
	}
	elapsed := s.clock.Now().Sub(s.started)
	s.running = false

	s.avg = runningMean(s.avg, s.count, float64(elapsed))
	if s.count == 0 || elapsed < s.min {
		s.min = elapsed
	}
	if elapsed > s.max {
		s.max = elapsed
	}
	s.last = elapsed
	s.count++
	return elapsed, nil
}

// Elapsed returns the time since Start for a running interval.
func (s *Stopwatch) Elapsed() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, gferrors.ErrNotStarted
	}
	return s.clock.Now().Sub(s.started), nil
}

// Tick records an event. From the second tick on, the time since the previous
// tick is folded into the period average.
func (s *Stopwatch) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.ticks > 0 {
		period := now.Sub(s.lastTick)
		s.avgPeriod = runningMean(s.avgPeriod, s.periods, float64(period))
		if period > s.maxPeriod {
			s.maxPeriod = period
		}
		s.periods++
	}
	s.lastTick = now
	s.ticks++
}

// Frequency returns events per second. ok is false until two ticks were seen.
func (s *Stopwatch) Frequency() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequencyLocked()
}

// Period returns the average time between ticks.
func (s *Stopwatch) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.avgPeriod)
}

// Reset clears the running interval and the tick counter so the next Tick
// starts a new period chain. Accumulated averages, extremes and counts are
// kept; create a new Stopwatch to discard them.
func (s *Stopwatch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.started = time.Time{}
	s.ticks = 0
	s.lastTick = time.Time{}
}

// Stats returns a snapshot of the accumulated statistics.
func (s *Stopwatch) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	freq, _ := s.frequencyLocked()
	return Stats{
		Count:     s.count,
		Avg:       time.Duration(s.avg),
		Min:       s.min,
		Max:       s.max,
		Last:      s.last,
		Ticks:     s.ticks,
		Periods:   s.periods,
		AvgPeriod: time.Duration(s.avgPeriod),
		MaxPeriod: s.maxPeriod,
		Frequency: freq,
	}
}

func (s *Stopwatch) frequencyLocked() (float64, bool) {
	if s.periods == 0 || s.avgPeriod <= 0 {
		return 0, false
	}
	return float64(time.Second) / s.avgPeriod, true
}

// runningMean folds x into an average of k samples.
func runningMean(avg float64, k uint64, x float64) float64 {
	n := float64(k)
	return avg*n/(n+1) + x/(n+1)
}
