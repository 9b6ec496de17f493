package annotator

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	gfcontext "github.com/vnykmshr/frameflow/pkg/common/context"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// DelayConfig configures the delay annotator.
type DelayConfig struct {
	// Delay is the base time spent on each frame.
	Delay time.Duration

	// Jitter adds a uniform random extra in [0, Jitter).
	Jitter time.Duration
}

// Delay simulates a model with a fixed per-frame cost.
type Delay struct {
	cfg      DelayConfig
	workerID int
	rng      *rand.Rand
}

// NewDelayFactory returns a factory of Delay annotators.
func NewDelayFactory(cfg DelayConfig) frame.AnnotatorFactory {
	return func(workerID int) (frame.Annotator, error) {
		return &Delay{
			cfg:      cfg,
			workerID: workerID,
			rng:      rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID))),
		}, nil
	}
}

// Annotate waits, then returns a copy of f labelled with the worker and the
// time spent.
func (a *Delay) Annotate(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	d := a.cfg.Delay
	if a.cfg.Jitter > 0 {
		d += time.Duration(a.rng.Int63n(int64(a.cfg.Jitter)))
	}
	if err := gfcontext.Sleep(ctx, d); err != nil {
		return nil, err
	}
	out := f.Clone()
	label(out, "worker", strconv.Itoa(a.workerID))
	label(out, "annotate_time", durationLabel(d))
	return out, nil
}

// Close implements frame.Annotator.
func (a *Delay) Close() error { return nil }
