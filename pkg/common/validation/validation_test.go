package validation

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

func TestValidators(t *testing.T) {
	var nilSource frame.Source
	discard := frame.SinkFunc(func(context.Context, uint64, *frame.Frame) error { return nil })
	tests := []struct {
		name   string
		err    error
		reason string
		hint   string
	}{
		{"workers ok", ValidatePositive("pipeline", "Workers", 3), "", ""},
		{"workers zero", ValidatePositive("pipeline", "Workers", 0), "must be positive", "value must be greater than 0"},
		{"drain polls zero", ValidateNonNegativeInt("reorder", "DrainPolls", 0), "", ""},
		{"drain polls negative", ValidateNonNegativeInt("reorder", "DrainPolls", -1), "cannot be negative", "use 0 to disable or a positive value"},
		{"fps unthrottled", ValidateNonNegative("ingest", "MaxFPS", 0), "", ""},
		{"fps negative", ValidateNonNegative("ingest", "MaxFPS", -0.5), "cannot be negative", "use 0 or a positive value"},
		{"timeout ok", ValidatePositiveDuration("config", "annotator.timeout", time.Second), "", ""},
		{"timeout zero", ValidatePositiveDuration("config", "annotator.timeout", 0), "must be positive", "use a duration such as 100ms or 1s"},
		{"poll zero", ValidateNonNegativeDuration("workerpool", "PollInterval", 0), "", ""},
		{"poll negative", ValidateNonNegativeDuration("workerpool", "PollInterval", -time.Millisecond), "cannot be negative", "use 0 to disable or a positive duration"},
		{"sink set", ValidateNotNil("pipeline", "sink", discard), "", ""},
		{"source nil", ValidateNotNil("ingest", "source", nilSource), "cannot be nil", "provide a valid source"},
		{"path set", ValidateNotEmpty("config", "output.path", "out"), "", ""},
		{"path empty", ValidateNotEmpty("config", "output.path", ""), "cannot be empty", "provide a non-empty output.path"},
		{"kind ok", ValidateOneOf("config", "annotator.kind", "exec", "delay", "http", "exec"), "", ""},
		{"kind unknown", ValidateOneOf("config", "annotator.kind", "tensorflow", "delay", "http", "exec"), "unsupported value", "use one of: delay, http, exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.reason == "" {
				if tt.err != nil {
					t.Fatalf("expected no error, got %v", tt.err)
				}
				return
			}
			verr, ok := tt.err.(*errors.ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T (%v)", tt.err, tt.err)
			}
			if verr.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", verr.Reason, tt.reason)
			}
			if verr.Hint != tt.hint {
				t.Errorf("Hint = %q, want %q", verr.Hint, tt.hint)
			}
			if verr.Unwrap() != errors.ErrInvalidConfiguration {
				t.Errorf("should unwrap to ErrInvalidConfiguration, got %v", verr.Unwrap())
			}
		})
	}
}

func TestValidateNotNilTypedNil(t *testing.T) {
	// A typed nil pointer inside an interface is not a nil interface.
	if err := ValidateNotNil("test", "config", (*int)(nil)); err != nil {
		t.Errorf("typed nil should pass, got %v", err)
	}
}

func TestErrorCarriesModuleAndValue(t *testing.T) {
	err := ValidatePositive("workerpool", "Workers", -5)
	verr, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Module != "workerpool" || verr.Field != "Workers" || verr.Value != -5 {
		t.Errorf("got %+v", verr)
	}
	if got, want := err.Error(), "workerpool: invalid Workers=-5 (must be positive) - value must be greater than 0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
