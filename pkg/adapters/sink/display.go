package sink

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// Display logs one line per emitted frame. It stands in for an on-screen
// preview on headless hosts.
type Display struct {
	logger *zap.Logger
}

// NewDisplay logs through logger. A nil logger uses zap.L().
func NewDisplay(logger *zap.Logger) *Display {
	if logger == nil {
		logger = zap.L()
	}
	return &Display{logger: logger.Named("display")}
}

// Write implements frame.Sink.
func (d *Display) Write(_ context.Context, seq uint64, f *frame.Frame) error {
	fields := []zap.Field{
		zap.Uint64("seq", seq),
		zap.String("source", f.Source),
		zap.Int("bytes", len(f.Data)),
	}
	if f.Width > 0 {
		fields = append(fields, zap.Int("width", f.Width), zap.Int("height", f.Height))
	}
	if len(f.Labels) > 0 {
		fields = append(fields, zap.String("labels", formatLabels(f.Labels)))
	}
	d.logger.Info("frame", fields...)
	return nil
}

// Close implements frame.Sink.
func (d *Display) Close() error {
	_ = d.logger.Sync()
	return nil
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}
