// Package metrics provides Prometheus instrumentation for frameflow pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for frameflow components.
type Registry struct {
	// Ingestion Metrics
	FramesIngested *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec

	// Worker Pool Metrics
	FramesAnnotated  *prometheus.CounterVec
	FramesFailed     *prometheus.CounterVec
	AnnotateDuration *prometheus.HistogramVec
	WorkersActive    *prometheus.GaugeVec

	// Reorder Metrics
	FramesEmitted  *prometheus.CounterVec
	FramesSkipped  *prometheus.CounterVec
	ReorderPending *prometheus.GaugeVec
	SinkErrors     *prometheus.CounterVec

	// Channel Metrics
	ChannelDepth       *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec

	// Run Metrics
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by frameflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring the namespace and
// constant labels in config. A nil Registry means prometheus.DefaultRegisterer.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(config.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(config.Labels, reg)
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	factory := promauto.With(reg)

	return &Registry{
		// Ingestion Metrics
		FramesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "ingest",
				Name:      "frames_total",
				Help:      "Total number of frames read from the source",
			},
			[]string{"pipeline"},
		),

		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "ingest",
				Name:      "source_errors_total",
				Help:      "Total number of source read failures",
			},
			[]string{"pipeline"},
		),

		// Worker Pool Metrics
		FramesAnnotated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "frames_annotated_total",
				Help:      "Total number of frames annotated successfully",
			},
			[]string{"pipeline"},
		),

		FramesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "frames_failed_total",
				Help:      "Total number of frames the annotator failed on",
			},
			[]string{"pipeline"},
		),

		AnnotateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "annotate_duration_seconds",
				Help:      "Time spent annotating a single frame",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"pipeline"},
		),

		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of running workers",
			},
			[]string{"pipeline"},
		),

		// Reorder Metrics
		FramesEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "reorder",
				Name:      "frames_emitted_total",
				Help:      "Total number of frames written to the sink",
			},
			[]string{"pipeline"},
		),

		FramesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "reorder",
				Name:      "frames_skipped_total",
				Help:      "Total number of sequence numbers not written, by reason",
			},
			[]string{"pipeline", "reason"},
		),

		ReorderPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "reorder",
				Name:      "pending",
				Help:      "Number of completions buffered waiting for their turn",
			},
			[]string{"pipeline"},
		),

		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "reorder",
				Name:      "sink_errors_total",
				Help:      "Total number of failed sink writes",
			},
			[]string{"pipeline"},
		),

		// Channel Metrics
		ChannelDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Subsystem: "channel",
				Name:      "depth",
				Help:      "Current number of buffered items",
			},
			[]string{"pipeline", "channel"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "channel",
				Name:      "backpressure_events_total",
				Help:      "Total number of puts that blocked on a full channel",
			},
			[]string{"pipeline", "channel"},
		),

		// Run Metrics
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"pipeline", "outcome"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall time of complete pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"pipeline"},
		),
	}
}
