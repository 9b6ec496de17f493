package pipeline_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vnykmshr/frameflow/internal/testutil"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/scheduling/pipeline"
)

func Example() {
	upper := frame.AnnotatorFunc(func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
		out := f.Clone()
		out.Data = bytes.ToUpper(out.Data)
		return out, nil
	})

	sink := frame.SinkFunc(func(_ context.Context, seq uint64, f *frame.Frame) error {
		fmt.Println(seq, string(f.Data))
		return nil
	})

	cfg := pipeline.DefaultConfig()
	cfg.Workers = 3

	p, err := pipeline.New(cfg, testutil.NewMemorySource(3), sink,
		func(int) (frame.Annotator, error) { return upper, nil })
	if err != nil {
		fmt.Println(err)
		return
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("emitted:", summary.Emitted)

	// Output:
	// 1 FRAME-1
	// 2 FRAME-2
	// 3 FRAME-3
	// emitted: 3
}
