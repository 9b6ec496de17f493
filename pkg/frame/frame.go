package frame

import (
	"context"
	"errors"
	"time"
)

// Frame is a single image payload.
type Frame struct {
	// Data holds the encoded image bytes (JPEG, PNG, raw BGR...).
	Data []byte

	// Width and Height in pixels, when known. Zero otherwise.
	Width  int
	Height int

	// Timestamp is the capture time reported by the source.
	Timestamp time.Time

	// Source names where the frame came from (file path, stream key).
	Source string

	// Labels carries annotator output such as detection summaries.
	Labels map[string]string
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	if f.Labels != nil {
		c.Labels = make(map[string]string, len(f.Labels))
		for k, v := range f.Labels {
			c.Labels[k] = v
		}
	}
	return &c
}

// SequencedItem pairs a frame with the sequence number assigned at ingestion.
type SequencedItem struct {
	Seq   uint64
	Frame *Frame
}

// Source produces frames in stream order.
type Source interface {
	// ReadNext returns the next frame, or io.EOF when the stream is exhausted.
	ReadNext(ctx context.Context) (*Frame, error)

	// TotalCount returns the number of frames in the stream when known up front.
	TotalCount() (uint64, bool)

	Close() error
}

// Sink receives frames in ascending sequence order.
type Sink interface {
	Write(ctx context.Context, seq uint64, f *Frame) error
	Close() error
}

// Annotator applies the per-frame transformation. Implementations may be slow
// and are used by a single goroutine.
type Annotator interface {
	Annotate(ctx context.Context, f *Frame) (*Frame, error)
	Close() error
}

// AnnotatorFactory builds the annotator owned by one worker.
type AnnotatorFactory func(workerID int) (Annotator, error)

// AnnotatorFunc adapts a function into an Annotator with a no-op Close.
type AnnotatorFunc func(ctx context.Context, f *Frame) (*Frame, error)

// Annotate calls fn.
func (fn AnnotatorFunc) Annotate(ctx context.Context, f *Frame) (*Frame, error) {
	return fn(ctx, f)
}

// Close implements Annotator.
func (fn AnnotatorFunc) Close() error {
	return nil
}

// SinkFunc adapts a function into a Sink with a no-op Close.
type SinkFunc func(ctx context.Context, seq uint64, f *Frame) error

// Write calls fn.
func (fn SinkFunc) Write(ctx context.Context, seq uint64, f *Frame) error {
	return fn(ctx, seq, f)
}

// Close implements Sink.
func (fn SinkFunc) Close() error {
	return nil
}

// MultiSink writes every frame to each sink in turn. A failing sink does not
// stop the fan-out; the errors of all failing sinks are joined.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, seq uint64, f *Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, seq, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
