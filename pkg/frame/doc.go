/*
Package frame defines the unit of work that flows through a frameflow pipeline
and the boundaries the pipeline talks to.

A Frame is an opaque image payload. The ingestion stage wraps every frame it
reads in a SequencedItem carrying a sequence number assigned exactly once,
starting at 1. Sequence numbers define the output order: whatever order the
workers finish in, the sink sees frames in ascending sequence order.

Boundaries:

	type Source interface {
		ReadNext(ctx context.Context) (*Frame, error) // io.EOF at end of stream
		TotalCount() (uint64, bool)
		Close() error
	}

	type Sink interface {
		Write(ctx context.Context, seq uint64, f *Frame) error
		Close() error
	}

	type Annotator interface {
		Annotate(ctx context.Context, f *Frame) (*Frame, error)
		Close() error
	}

Annotators are constructed per worker through an AnnotatorFactory and are
never shared between goroutines.

Ownership:

A frame is owned by whichever stage currently holds it. A stage must not keep
or mutate a frame after handing it to the next channel.
*/
package frame
