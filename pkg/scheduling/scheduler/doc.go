// Package scheduler runs periodic background jobs on cron expressions.
//
// The pipeline uses it for progress reporting: while a run is in flight, a job
// fires on the configured expression and logs counters and channel depths.
//
// # Basic Usage
//
//	s := scheduler.New(scheduler.Config{Logger: logger})
//	if err := s.Schedule("progress", "@every 5s", func(ctx context.Context) {
//		logger.Info("progress", zap.Uint64("emitted", stage.Progress().Emitted))
//	}); err != nil {
//		return err
//	}
//	_ = s.Start()
//	defer func() { <-s.Stop() }()
//
// # Expressions
//
// Standard five-field cron expressions are accepted, with an optional leading
// seconds field, as well as descriptors:
//
//	"*/10 * * * * *"  - every 10 seconds
//	"0 */5 * * * *"   - every 5 minutes
//	"@every 1m30s"    - every 90 seconds
//	"@hourly"         - at minute 0 of every hour
//
// # Overlap and Panics
//
// A job that is still running when its next activation comes due is skipped
// for that activation. A panicking job is recovered and the panic logged; the
// job stays scheduled.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package scheduler
