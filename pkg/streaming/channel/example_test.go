package channel_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/streaming/channel"
)

func Example() {
	ch := channel.New[string](2)
	ctx := context.Background()

	_ = ch.Put(ctx, "first")
	_ = ch.Put(ctx, "second")
	ch.Close()

	for {
		v, err := ch.Get(ctx, 10*time.Millisecond)
		if errors.Is(err, gferrors.ErrClosed) {
			break
		}
		fmt.Println(v)
	}
	// Output:
	// first
	// second
}

func Example_pollTimeout() {
	ch := channel.New[int](1)
	defer ch.Close()

	_, err := ch.Get(context.Background(), 5*time.Millisecond)
	fmt.Println(errors.Is(err, gferrors.ErrEmpty))
	// Output: true
}
