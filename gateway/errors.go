package gateway

import (
	"fmt"
	"log/slog"
	"time"
)

// ParseError indicates a malformed wire line. It is dropped and logged by the
// continuous handler and never halts the loop.
type ParseError struct {
	Line    string
	message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse wire line: %s", e.message)
}

// Attrs exposes the offending line for structured logging.
func (e *ParseError) Attrs() []slog.Attr {
	return []slog.Attr{slog.String("line", e.Line)}
}

// InvalidRangeError indicates a parsed value outside physically plausible
// bounds; the sample is dropped.
type InvalidRangeError struct {
	Field string
	Value float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("%s value %g outside plausible range", e.Field, e.Value)
}

// LinkError indicates a problem opening or reading the device link. It may
// wrap an underlying error using Go standard error wrapping.
type LinkError struct {
	message string
	wrapped error
}

func (e *LinkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *LinkError) Unwrap() error {
	return e.wrapped
}

// EmptyCollectionError indicates that a comprehensive reading collected zero
// samples during its window.
type EmptyCollectionError struct {
	Window time.Duration
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("no samples collected within %s", e.Window)
}

// StateError is returned when an operation cannot proceed in the gateway's
// current state.
type StateError struct {
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("operation not valid in gateway state %s", e.State)
}
