package config

import (
	"flag"
	"fmt"
	"io"
	"time"
)

// Flags holds the command-line values. Only flags the user actually passed
// override the configuration.
type Flags struct {
	ShowVersion bool
	ConfigFile  string

	Input      string
	NumFrames  uint64
	MaxFPS     float64
	Workers    int
	QueueSize  int
	Output     bool
	OutputPath string
	Display    bool
	FrameLog   string

	Annotator    string
	AnnotatorURL string
	AnnotatorCmd string
	Delay        time.Duration

	RedisAddr   string
	MetricsAddr string
	LogLevel    string
	ReportEvery string

	set map[string]bool
}

// Parser parses frameflow's command line.
type Parser struct {
	flagSet *flag.FlagSet
	flags   *Flags
}

// NewParser registers every flag, each long name with its shorthand.
func NewParser(name string, output io.Writer) *Parser {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	f := &Flags{}

	fs.BoolVar(&f.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&f.ShowVersion, "v", false, "Show version (shorthand)")

	fs.StringVar(&f.ConfigFile, "config", "", "Path to YAML configuration file")
	fs.StringVar(&f.ConfigFile, "c", "", "Config file (shorthand)")

	fs.StringVar(&f.Input, "input", "", "Glob of image files or a .ffl frame log")
	fs.StringVar(&f.Input, "i", "", "Input (shorthand)")

	fs.Uint64Var(&f.NumFrames, "num-frames", 0, "Stop after N frames; 0 reads everything")
	fs.Uint64Var(&f.NumFrames, "n", 0, "Num frames (shorthand)")

	fs.Float64Var(&f.MaxFPS, "max-fps", 0, "Cap the source read rate; 0 is unthrottled")

	fs.IntVar(&f.Workers, "workers", 2, "Number of annotation workers")
	fs.IntVar(&f.Workers, "w", 2, "Workers (shorthand)")

	fs.IntVar(&f.QueueSize, "queue-size", 5, "Capacity of the input and output queues")
	fs.IntVar(&f.QueueSize, "q", 5, "Queue size (shorthand)")

	fs.BoolVar(&f.Output, "output", false, "Write annotated frames to --output-path")
	fs.BoolVar(&f.Output, "o", false, "Output (shorthand)")
	fs.StringVar(&f.OutputPath, "output-path", "output", "Directory for annotated frames")

	fs.BoolVar(&f.Display, "display", false, "Log a line per annotated frame")
	fs.BoolVar(&f.Display, "d", false, "Display (shorthand)")

	fs.StringVar(&f.FrameLog, "frame-log", "", "Record annotated frames to this .ffl file")

	fs.StringVar(&f.Annotator, "annotator", "delay", "Annotator: delay, http or exec")
	fs.StringVar(&f.AnnotatorURL, "annotator-url", "", "Inference service URL for the http annotator")
	fs.StringVar(&f.AnnotatorCmd, "annotator-cmd", "", "Detector executable for the exec annotator")
	fs.DurationVar(&f.Delay, "delay", 100*time.Millisecond, "Per-frame time of the delay annotator")

	fs.StringVar(&f.RedisAddr, "redis-addr", "", "Publish annotated frames to this Redis server")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&f.ReportEvery, "report-every", "", `Progress log schedule, e.g. "@every 5s"`)

	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info", "Log level (shorthand)")

	fs.Usage = func() { usage(fs) }

	return &Parser{flagSet: fs, flags: f}
}

// Parse parses args (usually os.Args[1:]). The returned Flags is a copy.
func (p *Parser) Parse(args []string) (*Flags, error) {
	if err := p.flagSet.Parse(args); err != nil {
		return nil, err
	}
	if p.flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", p.flagSet.Args())
	}
	result := *p.flags
	result.set = make(map[string]bool)
	p.flagSet.Visit(func(f *flag.Flag) { result.set[f.Name] = true })
	return &result, nil
}

// IsSet reports whether any of names was passed on the command line.
func (f *Flags) IsSet(names ...string) bool {
	for _, n := range names {
		if f.set[n] {
			return true
		}
	}
	return false
}

// Apply copies the flags that were passed into cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.IsSet("input", "i") {
		cfg.Input.Path = f.Input
	}
	if f.IsSet("num-frames", "n") {
		cfg.Input.Limit = f.NumFrames
	}
	if f.IsSet("max-fps") {
		cfg.Input.MaxFPS = f.MaxFPS
	}
	if f.IsSet("workers", "w") {
		cfg.Pipeline.Workers = f.Workers
	}
	if f.IsSet("queue-size", "q") {
		cfg.Pipeline.QueueSize = f.QueueSize
	}
	if f.IsSet("report-every") {
		cfg.Pipeline.ReportEvery = f.ReportEvery
	}
	if f.IsSet("output", "o") {
		cfg.Output.Enabled = f.Output
	}
	if f.IsSet("output-path") {
		cfg.Output.Path = f.OutputPath
	}
	if f.IsSet("display", "d") {
		cfg.Output.Display = f.Display
	}
	if f.IsSet("frame-log") {
		cfg.Output.FrameLog = f.FrameLog
	}
	if f.IsSet("redis-addr") {
		cfg.Output.Redis.Addr = f.RedisAddr
	}
	if f.IsSet("annotator") {
		cfg.Annotator.Kind = f.Annotator
	}
	if f.IsSet("annotator-url") {
		cfg.Annotator.URL = f.AnnotatorURL
	}
	if f.IsSet("annotator-cmd") {
		cfg.Annotator.Command = f.AnnotatorCmd
	}
	if f.IsSet("delay") {
		cfg.Annotator.Delay = f.Delay
	}
	if f.IsSet("metrics-addr") {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	if f.IsSet("log-level", "l") {
		cfg.Logging.Level = f.LogLevel
	}
}

// Load builds the configuration for f: defaults, then the config file if
// one was given, then the environment, then the flags.
func Load(f *Flags) (Config, error) {
	cfg := Default()
	if f.ConfigFile != "" {
		if err := LoadFile(f.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	f.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "frameflow - annotate frames in parallel, emit them in order\n\n")
	fmt.Fprintf(w, "USAGE:\n  %s [FLAGS]\n\n", fs.Name())
	fmt.Fprintf(w, "FLAGS:\n")
	fmt.Fprintf(w, "  -c, --config FILE          YAML configuration file\n")
	fmt.Fprintf(w, "  -i, --input GLOB|FILE      Image glob or .ffl frame log\n")
	fmt.Fprintf(w, "  -n, --num-frames N         Stop after N frames\n")
	fmt.Fprintf(w, "      --max-fps F            Cap the source read rate\n")
	fmt.Fprintf(w, "  -w, --workers N            Annotation workers (default 2)\n")
	fmt.Fprintf(w, "  -q, --queue-size N         Queue capacity (default 5)\n")
	fmt.Fprintf(w, "  -o, --output               Write frames to --output-path\n")
	fmt.Fprintf(w, "      --output-path DIR      Output directory (default output)\n")
	fmt.Fprintf(w, "  -d, --display              Log a line per frame\n")
	fmt.Fprintf(w, "      --frame-log FILE       Record frames to a .ffl file\n")
	fmt.Fprintf(w, "      --annotator KIND       delay, http or exec\n")
	fmt.Fprintf(w, "      --annotator-url URL    Inference service for http\n")
	fmt.Fprintf(w, "      --annotator-cmd PATH   Detector executable for exec\n")
	fmt.Fprintf(w, "      --delay DURATION       Per-frame time for delay\n")
	fmt.Fprintf(w, "      --redis-addr ADDR      Publish frames to a Redis stream\n")
	fmt.Fprintf(w, "      --metrics-addr ADDR    Serve Prometheus metrics\n")
	fmt.Fprintf(w, "      --report-every SPEC    Progress log schedule\n")
	fmt.Fprintf(w, "  -l, --log-level LEVEL      debug, info, warn, error\n")
	fmt.Fprintf(w, "  -v, --version              Show version\n\n")
	fmt.Fprintf(w, "ENVIRONMENT:\n  FRAMEFLOW_<SECTION>_<FIELD>, e.g. FRAMEFLOW_PIPELINE_WORKERS=4\n")
}
