package pipeline

import (
	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and all of its stages.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records pipeline metrics into registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(p *Pipeline) {
		p.metrics = registry
	}
}

// WithItemHook is called for every completion a worker produces, in
// completion order, from the worker's goroutine.
func WithItemHook(fn func(workerID int, c workerpool.Completion)) Option {
	return func(p *Pipeline) {
		p.onItem = fn
	}
}

// WithWorkerHooks is called when each worker starts and stops.
func WithWorkerHooks(onStart, onStop func(workerID int)) Option {
	return func(p *Pipeline) {
		p.onWorkerStart = onStart
		p.onWorkerStop = onStop
	}
}
