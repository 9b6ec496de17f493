package pipeline

import (
	"time"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/common/validation"
	"github.com/vnykmshr/frameflow/pkg/scheduling/scheduler"
	"github.com/vnykmshr/frameflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/frameflow/pkg/streaming/reorder"
)

// Config holds pipeline configuration options.
type Config struct {
	// Name labels metrics and logs. Defaults to "frameflow".
	Name string

	// Workers is the number of parallel annotators.
	Workers int

	// QueueSize is the capacity of both the input and the output channel.
	QueueSize int

	// PollInterval bounds every channel wait, and so how quickly stages
	// notice shutdown.
	PollInterval time.Duration

	// DrainPolls is how many consecutive empty polls end the reorder stage
	// after an abort.
	DrainPolls int

	// Window caps the frames read but not yet written or skipped. Zero
	// selects 3*QueueSize + Workers; a negative value means unbounded.
	Window int

	// MaxPending opts into the reorder gap policy: when more completions
	// than this are buffered behind a missing frame, that frame is declared
	// lost. Zero disables the policy.
	MaxPending int

	// MaxFPS caps the source read rate. Zero means unthrottled.
	MaxFPS float64

	// Limit stops ingestion after this many frames. Zero means no limit.
	Limit uint64

	// TaskTimeout bounds each Annotate call. Zero means no timeout.
	TaskTimeout time.Duration

	// ReportEvery is a cron expression for periodic progress logs, such as
	// "@every 5s". Empty disables reporting.
	ReportEvery string
}

// DefaultConfig returns the defaults used by the command-line tool.
func DefaultConfig() Config {
	return Config{
		Name:         "frameflow",
		Workers:      2,
		QueueSize:    5,
		PollInterval: workerpool.DefaultPollInterval,
		DrainPolls:   reorder.DefaultDrainPolls,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("pipeline", "Workers", c.Workers); err != nil {
		return err
	}
	if err := validation.ValidatePositive("pipeline", "QueueSize", c.QueueSize); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("pipeline", "PollInterval", c.PollInterval); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("pipeline", "MaxPending", c.MaxPending); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("pipeline", "DrainPolls", c.DrainPolls); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("pipeline", "MaxFPS", c.MaxFPS); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("pipeline", "TaskTimeout", c.TaskTimeout); err != nil {
		return err
	}
	if c.ReportEvery != "" {
		if err := scheduler.ValidateExpression(c.ReportEvery); err != nil {
			return gferrors.NewValidationError("pipeline", "ReportEvery", c.ReportEvery, err.Error()).
				WithHint(`use a cron expression such as "@every 5s"`)
		}
	}
	return nil
}

// EffectiveWindow resolves Window to a credit count, where zero means
// unbounded.
func (c Config) EffectiveWindow() int {
	switch {
	case c.Window < 0:
		return 0
	case c.Window == 0:
		return 3*c.QueueSize + c.Workers
	default:
		return c.Window
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.DrainPolls == 0 {
		c.DrainPolls = d.DrainPolls
	}
	return c
}
