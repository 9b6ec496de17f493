// Package metrics provides Prometheus instrumentation for frameflow pipelines.
//
// Every stage of a pipeline records into a shared *Registry. All metrics carry
// a "pipeline" label so several pipelines can share one process.
//
// # Quick Start
//
// Pass a registry to the coordinator and expose it over HTTP:
//
//	p, err := pipeline.New(cfg, src, sink, factory,
//		pipeline.WithMetrics(metrics.DefaultRegistry))
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, typically in tests:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
// # Available Metrics
//
// Ingestion:
//   - frameflow_ingest_frames_total{pipeline}
//   - frameflow_ingest_source_errors_total{pipeline}
//
// Worker pool:
//   - frameflow_workerpool_frames_annotated_total{pipeline}
//   - frameflow_workerpool_frames_failed_total{pipeline}
//   - frameflow_workerpool_annotate_duration_seconds{pipeline}
//   - frameflow_workerpool_active_workers{pipeline}
//
// Reorder stage:
//   - frameflow_reorder_frames_emitted_total{pipeline}
//   - frameflow_reorder_frames_skipped_total{pipeline,reason}
//     where reason is one of "failed", "gap", "late"
//   - frameflow_reorder_pending{pipeline}
//   - frameflow_reorder_sink_errors_total{pipeline}
//
// Channels:
//   - frameflow_channel_depth{pipeline,channel}
//   - frameflow_channel_backpressure_events_total{pipeline,channel}
//
// Runs:
//   - frameflow_pipeline_runs_total{pipeline,outcome}
//   - frameflow_pipeline_run_duration_seconds{pipeline}
//
// A nil *Registry is valid everywhere a registry is accepted and disables
// recording.
package metrics
