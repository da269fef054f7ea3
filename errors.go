// Package oxidation - errors.go provides the error types surfaced by the engine,
// the layouts, and the Flake parsers.
//
// Every error is returned to the immediate caller. Sentinels work with
// errors.Is, and the structured types work with errors.As.

package oxidation

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	// ErrInvalidConfig is the root of every configuration failure: a worker
	// id too wide for the layout, an invalid layout, or an epoch/layout pair
	// that cannot represent the current time.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidLayout is returned when a layout's field widths are unusable.
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrWorkerIDTooLarge is returned when a worker id does not fit the
	// layout's worker field.
	ErrWorkerIDTooLarge = errors.New("worker id too large for layout")

	// ErrTimeOverflow is returned when elapsed time no longer fits the
	// layout's time field. It is a configuration error, never truncated.
	ErrTimeOverflow = errors.New("elapsed time exceeds layout time field")

	// ErrClockMovedBack is returned when the clock stays behind the last
	// issued time unit for longer than the configured tolerance.
	ErrClockMovedBack = errors.New("clock moved backwards")

	// ErrClockStalled is returned when the counter is exhausted and the
	// clock does not advance to the next unit within MaxClockStall.
	ErrClockStalled = errors.New("clock stalled while counter exhausted")

	// ErrContextCanceled is returned when the context is done while waiting
	// out a clock regression.
	ErrContextCanceled = errors.New("context canceled")

	// ErrInvalidFlake is the root of every Flake parse failure.
	ErrInvalidFlake = errors.New("invalid flake")

	// ErrMalformed is returned for input that is not in the expected form.
	ErrMalformed = errors.New("malformed input")

	// ErrOutOfRange is returned for well-formed numeric input that does not
	// fit in 128 bits.
	ErrOutOfRange = errors.New("value out of range")
)

// ClockError describes a clock anomaly observed by an engine.
//
// Example usage:
//
//	if _, err := eng.Oxidize(); err != nil {
//	    var clockErr *oxidation.ClockError
//	    if errors.As(err, &clockErr) {
//	        log.Warn().Dur("drift", clockErr.Drift).Msg("clock regression")
//	    }
//	}
type ClockError struct {
	// Current is the time unit read from the clock when the engine gave up.
	Current int64

	// Last is the last time unit used to produce a Flake.
	Last int64

	// Drift is how far behind Last the clock was, as a duration.
	Drift time.Duration

	// Tolerance is the wait bound that was exceeded.
	Tolerance time.Duration

	// WorkerID is the worker id of the engine.
	WorkerID WorkerID

	// Stalled is true when the clock failed to advance during counter
	// exhaustion, rather than moving backwards.
	Stalled bool
}

// Error implements the error interface.
func (e *ClockError) Error() string {
	if e.Stalled {
		return fmt.Sprintf("clock stalled: unit=%d did not advance within %v (worker=%d)",
			e.Last, e.Tolerance, e.WorkerID)
	}
	return fmt.Sprintf("clock moved backwards: drift=%v tolerance=%v current=%d last=%d worker=%d",
		e.Drift, e.Tolerance, e.Current, e.Last, e.WorkerID)
}

// Unwrap returns the matching sentinel for errors.Is.
func (e *ClockError) Unwrap() error {
	if e.Stalled {
		return ErrClockStalled
	}
	return ErrClockMovedBack
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	// Field is the configuration field that failed validation.
	Field string

	// Value is the offending value, rendered for logging.
	Value string

	// Reason explains why the value is invalid.
	Reason string

	// Constraint describes the valid range.
	Constraint string

	// Err is an optional more specific sentinel (ErrWorkerIDTooLarge,
	// ErrInvalidLayout).
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%s (%s) - %s",
		e.Field, e.Value, e.Reason, e.Constraint)
}

// Unwrap exposes ErrInvalidConfig and the specific cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// OverflowError is returned when elapsed time does not fit the layout's time
// field. The epoch/layout pair can no longer represent the current time.
type OverflowError struct {
	// Elapsed is the elapsed time in layout units.
	Elapsed uint64

	// MaxElapsed is the largest value the time field holds.
	MaxElapsed uint64

	// Layout names the layout that overflowed.
	Layout string
}

// Error implements the error interface.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("time field overflow: elapsed=%d max=%d layout=%s",
		e.Elapsed, e.MaxElapsed, e.Layout)
}

// Unwrap exposes both ErrTimeOverflow and ErrInvalidConfig.
func (e *OverflowError) Unwrap() []error {
	return []error{ErrTimeOverflow, ErrInvalidConfig}
}

// ParseError is returned when a textual or numeric representation of a
// Flake cannot be parsed. No partial result accompanies it.
type ParseError struct {
	// Form is the representation being parsed ("canonical", "decimal", ...).
	Form string

	// Input is the rejected input, truncated for logging.
	Input string

	// Err is ErrMalformed, ErrOutOfRange, or an encoding sentinel.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid flake: cannot parse %q as %s: %v", e.Input, e.Form, e.Err)
}

// Unwrap exposes ErrInvalidFlake and the specific cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidFlake, e.Err}
}

// IsClockError reports whether err is or wraps a ClockError.
func IsClockError(err error) bool {
	var clockErr *ClockError
	return errors.As(err, &clockErr)
}

// IsConfigError reports whether err is a configuration failure, including
// time-field overflow.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// GetClockError extracts the ClockError from an error chain.
func GetClockError(err error) (*ClockError, bool) {
	var clockErr *ClockError
	if errors.As(err, &clockErr) {
		return clockErr, true
	}
	return nil, false
}

// GetConfigError extracts the ConfigError from an error chain.
func GetConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

func newConfigError(field, value, reason, constraint string, cause error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Reason:     reason,
		Constraint: constraint,
		Err:        cause,
	}
}

func newParseError(form, input string, cause error) *ParseError {
	const maxInput = 64
	if len(input) > maxInput {
		input = input[:maxInput] + "..."
	}
	return &ParseError{Form: form, Input: input, Err: cause}
}
