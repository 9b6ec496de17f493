package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// MockClock implements a controllable clock for timing tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock starting at the given time.
// If zero time is provided, uses current time.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by the given duration.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock clock to a specific time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// MemorySource serves n synthetic frames. Frame i (1-based) carries the
// payload "frame-i" so tests can check identity after annotation.
type MemorySource struct {
	mu        sync.Mutex
	n         int
	read      int
	known     bool
	readDelay time.Duration
	closed    bool
}

// NewMemorySource returns a source of n frames whose total count is known.
func NewMemorySource(n int) *MemorySource {
	return &MemorySource{n: n, known: true}
}

// HideTotal makes TotalCount report an unknown length.
func (s *MemorySource) HideTotal() *MemorySource {
	s.known = false
	return s
}

// SetReadDelay slows every ReadNext call down.
func (s *MemorySource) SetReadDelay(d time.Duration) *MemorySource {
	s.readDelay = d
	return s
}

// ReadNext implements frame.Source.
func (s *MemorySource) ReadNext(ctx context.Context) (*frame.Frame, error) {
	if s.readDelay > 0 {
		select {
		case <-time.After(s.readDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read >= s.n {
		return nil, io.EOF
	}
	s.read++
	return &frame.Frame{Data: []byte(fmt.Sprintf("frame-%d", s.read)), Source: "memory"}, nil
}

// TotalCount implements frame.Source.
func (s *MemorySource) TotalCount() (uint64, bool) {
	return uint64(s.n), s.known
}

// Close implements frame.Source.
func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Read returns how many frames have been handed out.
func (s *MemorySource) Read() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read
}

// RecordingSink remembers the sequence numbers and payloads it receives.
type RecordingSink struct {
	mu       sync.Mutex
	seqs     []uint64
	payloads []string
	block    chan struct{}
	failSeq  map[uint64]bool
	closed   bool
}

// NewRecordingSink creates an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{failSeq: make(map[uint64]bool)}
}

// BlockUntil makes every Write wait until release is closed.
func (s *RecordingSink) BlockUntil(release chan struct{}) *RecordingSink {
	s.block = release
	return s
}

// FailOn makes the write of seq return an error.
func (s *RecordingSink) FailOn(seq uint64) *RecordingSink {
	s.failSeq[seq] = true
	return s
}

// Write implements frame.Sink.
func (s *RecordingSink) Write(ctx context.Context, seq uint64, f *frame.Frame) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSeq[seq] {
		return errors.New("simulated sink failure")
	}
	s.seqs = append(s.seqs, seq)
	s.payloads = append(s.payloads, string(f.Data))
	return nil
}

// Close implements frame.Sink.
func (s *RecordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Seqs returns a copy of the recorded sequence numbers.
func (s *RecordingSink) Seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.seqs...)
}

// Payloads returns a copy of the recorded payloads.
func (s *RecordingSink) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ScriptedAnnotator delays or fails frames by payload. It appends "+ann" to
// the payload of every frame it annotates.
type ScriptedAnnotator struct {
	Delays   map[string]time.Duration
	Failures map[string]bool
	Panics   map[string]bool
	Default  time.Duration
}

// Annotate implements frame.Annotator.
func (a *ScriptedAnnotator) Annotate(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	key := string(f.Data)
	d := a.Default
	if v, ok := a.Delays[key]; ok {
		d = v
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.Panics[key] {
		panic("annotator panic on " + key)
	}
	if a.Failures[key] {
		return nil, fmt.Errorf("cannot annotate %s", key)
	}
	out := f.Clone()
	out.Data = append(out.Data, []byte("+ann")...)
	return out, nil
}

// Close implements frame.Annotator.
func (a *ScriptedAnnotator) Close() error { return nil }

// AnnotatorTracker builds annotators through a factory and counts how many
// were opened and closed.
type AnnotatorTracker struct {
	mu      sync.Mutex
	opened  int
	closed  int
	Inner   frame.Annotator
	FailNew bool
}

// Factory returns a frame.AnnotatorFactory backed by the tracker.
func (tr *AnnotatorTracker) Factory() frame.AnnotatorFactory {
	return func(workerID int) (frame.Annotator, error) {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		if tr.FailNew {
			return nil, fmt.Errorf("worker %d: model not found", workerID)
		}
		tr.opened++
		return &trackedAnnotator{tracker: tr, inner: tr.Inner}, nil
	}
}

// Counts returns how many annotators were opened and closed.
func (tr *AnnotatorTracker) Counts() (opened, closed int) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.opened, tr.closed
}

type trackedAnnotator struct {
	tracker *AnnotatorTracker
	inner   frame.Annotator
}

func (a *trackedAnnotator) Annotate(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	return a.inner.Annotate(ctx, f)
}

func (a *trackedAnnotator) Close() error {
	a.tracker.mu.Lock()
	defer a.tracker.mu.Unlock()
	a.tracker.closed++
	return nil
}
