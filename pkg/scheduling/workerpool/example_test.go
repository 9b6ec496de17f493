package workerpool_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
)

func Example() {
	ctx := context.Background()
	in := channel.New[frame.SequencedItem](4)
	out := channel.New[workerpool.Completion](4)

	upper := func(int) (frame.Annotator, error) {
		return frame.AnnotatorFunc(func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			c := f.Clone()
			c.Data = []byte(strings.ToUpper(string(f.Data)))
			return c, nil
		}), nil
	}

	pool, err := workerpool.New(workerpool.Config{Workers: 1}, upper, in, out)
	if err != nil {
		panic(err)
	}
	shutdownCtx, shutdown := context.WithCancel(ctx)
	if err := pool.Start(ctx, shutdownCtx); err != nil {
		panic(err)
	}

	_ = in.Put(ctx, frame.SequencedItem{Seq: 1, Frame: &frame.Frame{Data: []byte("hello")}})
	c, _ := out.Get(ctx, 0)
	fmt.Println(c.Seq, string(c.Frame.Data))

	shutdown()
	pool.Wait()
	// Output: 1 HELLO
}
