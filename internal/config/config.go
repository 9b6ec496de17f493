// Package config loads frameflow settings. Sources are applied in order:
// built-in defaults, an optional YAML file, FRAMEFLOW_* environment
// variables, then command-line flags. The result is validated once at the
// end.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/frameflow/internal/logging"
	"github.com/vnykmshr/frameflow/pkg/adapters/annotator"
	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/scheduling/pipeline"
)

// EnvPrefix prefixes every environment variable, for example
// FRAMEFLOW_PIPELINE_WORKERS.
const EnvPrefix = "FRAMEFLOW"

// Config is the complete frameflow configuration.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Annotator AnnotatorConfig `yaml:"annotator"`
	Output    OutputConfig    `yaml:"output"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   logging.Config  `yaml:"logging"`
}

// InputConfig selects the frame source.
type InputConfig struct {
	// Path is a glob of image files or a .ffl frame log.
	Path string `yaml:"path" split_words:"true"`

	// Limit stops after this many frames; 0 reads everything.
	Limit uint64 `yaml:"limit" split_words:"true"`

	// MaxFPS throttles reading; 0 is unthrottled.
	MaxFPS float64 `yaml:"max_fps" split_words:"true"`
}

// PipelineConfig mirrors pipeline.Config.
type PipelineConfig struct {
	Name         string        `yaml:"name" split_words:"true"`
	Workers      int           `yaml:"workers" split_words:"true"`
	QueueSize    int           `yaml:"queue_size" split_words:"true"`
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
	DrainPolls   int           `yaml:"drain_polls" split_words:"true"`
	Window       int           `yaml:"window" split_words:"true"`
	MaxPending   int           `yaml:"max_pending" split_words:"true"`
	TaskTimeout  time.Duration `yaml:"task_timeout" split_words:"true"`
	ReportEvery  string        `yaml:"report_every" split_words:"true"`
}

// AnnotatorConfig selects and configures the annotator.
type AnnotatorConfig struct {
	Kind string `yaml:"kind" split_words:"true"`

	// delay
	Delay  time.Duration `yaml:"delay" split_words:"true"`
	Jitter time.Duration `yaml:"jitter" split_words:"true"`

	// http
	URL        string            `yaml:"url" split_words:"true"`
	Timeout    time.Duration     `yaml:"timeout" split_words:"true"`
	MaxRetries int               `yaml:"max_retries" split_words:"true"`
	Headers    map[string]string `yaml:"headers" split_words:"true"`

	// exec
	Command string   `yaml:"command" split_words:"true"`
	Args    []string `yaml:"args" split_words:"true"`
}

// OutputConfig selects the sinks. Any combination may be enabled.
type OutputConfig struct {
	// Enabled writes one file per frame under Path.
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true"`
	Ext     string `yaml:"ext" split_words:"true"`

	// Display logs a line per frame.
	Display bool `yaml:"display" split_words:"true"`

	// FrameLog records every frame to this .ffl file when set.
	FrameLog string `yaml:"frame_log" split_words:"true"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the Redis stream sink when Addr is set.
type RedisConfig struct {
	Addr   string `yaml:"addr" split_words:"true"`
	Stream string `yaml:"stream" split_words:"true"`
	MaxLen int64  `yaml:"max_len" split_words:"true"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
	Path string `yaml:"path" split_words:"true"`
}

// Default returns the built-in defaults.
func Default() Config {
	p := pipeline.DefaultConfig()
	return Config{
		Pipeline: PipelineConfig{
			Name:         p.Name,
			Workers:      p.Workers,
			QueueSize:    p.QueueSize,
			PollInterval: p.PollInterval,
			DrainPolls:   p.DrainPolls,
		},
		Annotator: AnnotatorConfig{
			Kind:    annotator.KindDelay,
			Delay:   100 * time.Millisecond,
			Timeout: 10 * time.Second,
		},
		Output: OutputConfig{
			Path: "output",
			Redis: RedisConfig{
				Stream: "frameflow:frames",
			},
		},
		Metrics: MetricsConfig{Path: "/metrics"},
		Logging: logging.DefaultConfig(),
	}
}

// LoadFile merges the YAML file at path into cfg. Unknown keys are errors.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any FRAMEFLOW_* variables that are set.
// Field names are split on case changes, so Pipeline.QueueSize reads
// FRAMEFLOW_PIPELINE_QUEUE_SIZE. Fields carry no envconfig tag because a tag
// would also be looked up without the prefix.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks everything the pipeline does not check itself.
func (c Config) Validate() error {
	if c.Input.Path == "" {
		return gferrors.NewValidationError("config", "input.path", c.Input.Path, "cannot be empty").
			WithHint("pass -i with a glob such as 'frames/*.jpg' or a .ffl file")
	}
	if err := validation.ValidateNonNegative("config", "input.max_fps", c.Input.MaxFPS); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("config", "annotator.kind", c.Annotator.Kind,
		annotator.KindDelay, annotator.KindHTTP, annotator.KindExec); err != nil {
		return err
	}
	switch c.Annotator.Kind {
	case annotator.KindHTTP:
		if err := validation.ValidateNotEmpty("config", "annotator.url", c.Annotator.URL); err != nil {
			return err
		}
		if err := validation.ValidatePositiveDuration("config", "annotator.timeout", c.Annotator.Timeout); err != nil {
			return err
		}
	case annotator.KindExec:
		if err := validation.ValidateNotEmpty("config", "annotator.command", c.Annotator.Command); err != nil {
			return err
		}
	}
	if c.Output.Enabled {
		if err := validation.ValidateNotEmpty("config", "output.path", c.Output.Path); err != nil {
			return err
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return gferrors.NewValidationError("config", "logging.level", c.Logging.Level, err.Error())
	}
	return c.PipelineConfig().Validate()
}

// PipelineConfig converts to the coordinator's configuration.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Name:         c.Pipeline.Name,
		Workers:      c.Pipeline.Workers,
		QueueSize:    c.Pipeline.QueueSize,
		PollInterval: c.Pipeline.PollInterval,
		DrainPolls:   c.Pipeline.DrainPolls,
		Window:       c.Pipeline.Window,
		MaxPending:   c.Pipeline.MaxPending,
		MaxFPS:       c.Input.MaxFPS,
		Limit:        c.Input.Limit,
		TaskTimeout:  c.Pipeline.TaskTimeout,
		ReportEvery:  c.Pipeline.ReportEvery,
	}
}

// AnnotatorConfig converts to the annotator package's configuration.
func (c Config) AnnotatorConfig() annotator.Config {
	a := c.Annotator
	return annotator.Config{
		Kind:  a.Kind,
		Delay: annotator.DelayConfig{Delay: a.Delay, Jitter: a.Jitter},
		HTTP: annotator.HTTPConfig{
			URL:        a.URL,
			Timeout:    a.Timeout,
			MaxRetries: a.MaxRetries,
			Headers:    a.Headers,
		},
		Exec: annotator.ExecConfig{Command: a.Command, Args: a.Args},
	}
}
