package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the frameflow library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrEmpty indicates that a bounded wait on an empty channel elapsed.
	// It matches ErrTimeout with errors.Is.
	ErrEmpty = fmt.Errorf("channel empty: %w", ErrTimeout)

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotStarted indicates a stop or read on a timer that was never started
	ErrNotStarted = errors.New("invalid state: not started")

	// ErrSourceOpen indicates that a frame source could not be opened.
	// It is fatal: the pipeline never starts.
	ErrSourceOpen = errors.New("source open failure")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint sets the hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// OperationError wraps a failure of a named operation inside a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches free-form context and returns the same error.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// TransformationError reports that the annotator failed for one item.
// The item is not retried; its sequence number becomes a gap in the output.
type TransformationError struct {
	Seq      uint64
	WorkerID int
	Err      error
}

// NewTransformationError tags err with the sequence number and worker that hit it.
func NewTransformationError(seq uint64, workerID int, err error) *TransformationError {
	return &TransformationError{Seq: seq, WorkerID: workerID, Err: err}
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transform seq=%d worker=%d: %v", e.Seq, e.WorkerID, e.Err)
}

func (e *TransformationError) Unwrap() error {
	return e.Err
}
