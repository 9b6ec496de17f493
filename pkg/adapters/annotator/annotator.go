// Package annotator provides frame.Annotator implementations and builds the
// per-worker factory from configuration.
//
// Three kinds are available:
//
//   - delay: sleeps for a fixed time and labels the frame, a stand-in for a
//     slow model when benchmarking the pipeline
//   - http: posts each frame to an inference service
//   - exec: streams frames to an external detector process over stdin/stdout
//
// Every worker gets its own annotator instance, so implementations need no
// locking around Annotate.
package annotator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// Kinds of annotator accepted by NewFactory.
const (
	KindDelay = "delay"
	KindHTTP  = "http"
	KindExec  = "exec"
)

// Config selects and configures an annotator kind.
type Config struct {
	Kind  string
	Delay DelayConfig
	HTTP  HTTPConfig
	Exec  ExecConfig
}

// NewFactory returns the factory for cfg.Kind. Settings are checked here so
// configuration mistakes surface before any worker starts.
func NewFactory(cfg Config, logger *zap.Logger) (frame.AnnotatorFactory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case KindDelay, "":
		return NewDelayFactory(cfg.Delay), nil
	case KindHTTP:
		return NewHTTPFactory(cfg.HTTP, logger)
	case KindExec:
		return NewExecFactory(cfg.Exec, logger)
	default:
		return nil, fmt.Errorf("unknown annotator kind %q (want %s, %s or %s)", cfg.Kind, KindDelay, KindHTTP, KindExec)
	}
}

func label(f *frame.Frame, key, value string) {
	if f.Labels == nil {
		f.Labels = make(map[string]string)
	}
	f.Labels[key] = value
}

func durationLabel(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}
