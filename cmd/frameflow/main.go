// Command frameflow reads frames, annotates them on parallel workers and
// writes them out in their original order.
//
//	frameflow -i 'frames/*.jpg' -w 4 -o --output-path annotated
//
// The first SIGINT or SIGTERM stops reading and drains the frames already
// read; a second one aborts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/internal/config"
	"github.com/vnykmshr/frameflow/internal/logging"
	"github.com/vnykmshr/frameflow/pkg/adapters/annotator"
	"github.com/vnykmshr/frameflow/pkg/adapters/sink"
	"github.com/vnykmshr/frameflow/pkg/adapters/source"
	"github.com/vnykmshr/frameflow/pkg/frame"
	"github.com/vnykmshr/frameflow/pkg/metrics"
	"github.com/vnykmshr/frameflow/pkg/scheduling/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, for tests. It returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags, err := config.NewParser("frameflow", stderr).Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if flags.ShowVersion {
		fmt.Fprintf(stdout, "frameflow %s\n", version)
		return 0
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(stderr, "frameflow: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "frameflow: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	summary, err := execute(cfg, logger)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Warn("run aborted by signal")
	default:
		logger.Error("run failed", zap.Error(err))
		fmt.Fprintf(stderr, "frameflow: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%d frames in, %d out, %d failed, %s",
		summary.Ingested, summary.Emitted, summary.TransformErrors, summary.Elapsed.Round(time.Millisecond))
	if summary.Output.Frequency > 0 {
		fmt.Fprintf(stdout, " (%.1f fps)", summary.Output.Frequency)
	}
	fmt.Fprintln(stdout)
	return 0
}

// execute opens every resource cfg names, runs the pipeline once and
// releases them again.
func execute(cfg config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []pipeline.Option
	opts = append(opts, pipeline.WithLogger(logger))
	if cfg.Metrics.Addr != "" {
		reg, stop, err := serveMetrics(cfg.Metrics, logger)
		if err != nil {
			return pipeline.Summary{}, err
		}
		defer stop()
		opts = append(opts, pipeline.WithMetrics(reg))
	}

	src, err := source.Open(cfg.Input.Path)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer src.Close()

	out, err := openSinks(ctx, cfg.Output, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error("closing sinks", zap.Error(err))
		}
	}()

	factory, err := annotator.NewFactory(cfg.AnnotatorConfig(), logger)
	if err != nil {
		return pipeline.Summary{}, err
	}

	p, err := pipeline.New(cfg.PipelineConfig(), src, out, factory, opts...)
	if err != nil {
		return pipeline.Summary{}, err
	}

	stopSignals := handleSignals(p, cancel, logger)
	defer stopSignals()

	return p.Run(ctx)
}

// openSinks builds every enabled sink. With none enabled, frames are
// counted and dropped.
func openSinks(ctx context.Context, cfg config.OutputConfig, logger *zap.Logger) (frame.Sink, error) {
	var sinks frame.MultiSink
	fail := func(err error) (frame.Sink, error) {
		_ = sinks.Close()
		return nil, err
	}

	if cfg.Enabled {
		d, err := sink.NewDir(cfg.Path, cfg.Ext)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, d)
	}
	if cfg.FrameLog != "" {
		l, err := sink.CreateFrameLog(cfg.FrameLog, zstd.SpeedDefault)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, l)
	}
	if cfg.Redis.Addr != "" {
		r, err := sink.NewRedisStream(ctx, sink.RedisConfig{
			Addr:   cfg.Redis.Addr,
			Stream: cfg.Redis.Stream,
			MaxLen: cfg.Redis.MaxLen,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, r)
	}
	if cfg.Display {
		sinks = append(sinks, sink.NewDisplay(logger))
	}
	if len(sinks) == 0 {
		return frame.SinkFunc(func(context.Context, uint64, *frame.Frame) error { return nil }), nil
	}
	return sinks, nil
}

// serveMetrics exposes a dedicated registry over HTTP. The returned stop
// function shuts the server down.
func serveMetrics(cfg config.MetricsConfig, logger *zap.Logger) (*metrics.Registry, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.Config{Enabled: true, Registry: reg, Namespace: metrics.DefaultNamespace}.Build()

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()), zap.String("path", path))

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return m, stop, nil
}

// handleSignals maps the first interrupt to a graceful shutdown and the
// second to an abort.
func handleSignals(p *pipeline.Pipeline, abort context.CancelFunc, logger *zap.Logger) (stop func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		count := 0
		for {
			select {
			case sig := <-sigs:
				count++
				if count == 1 {
					logger.Info("signal received, draining; repeat to abort", zap.Stringer("signal", sig))
					p.Shutdown()
					continue
				}
				logger.Warn("second signal received, aborting", zap.Stringer("signal", sig))
				abort()
				return
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
