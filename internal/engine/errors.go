package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// ExitCodeFatal is the process exit status used by DefaultFatalHandler.
const ExitCodeFatal = 3

// FatalError represents a condition the collision pipeline cannot continue from.
//
// Fatal errors include:
//   - Scheduling stall: the work list did not drain within the safety timeout
//   - Resource creation: the engine could not be started
//
// A stall is never returned from Run; it is passed to the engine's
// FatalHandler, which by default terminates the process.
type FatalError struct {
	// Code identifies the error category.
	Code FatalErrorCode

	// Message is a human-readable description.
	Message string

	// Frame is the frame being processed when the error occurred.
	Frame int64

	// Details contains additional context.
	Details map[string]string
}

// FatalErrorCode categorizes fatal errors.
type FatalErrorCode string

const (
	// ErrCodeSchedulingStall indicates the work list failed to drain in time.
	ErrCodeSchedulingStall FatalErrorCode = "SCHEDULING_STALL"

	// ErrCodeResourceCreation indicates the engine could not be started.
	ErrCodeResourceCreation FatalErrorCode = "RESOURCE_CREATION"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Frame > 0 {
		return fmt.Sprintf("%s: %s (frame=%d)", e.Code, e.Message, e.Frame)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LogAttrs returns the error as slog attributes, details in key order.
func (e *FatalError) LogAttrs() []any {
	attrs := []any{"code", string(e.Code), "message", e.Message}
	if e.Frame > 0 {
		attrs = append(attrs, "frame", e.Frame)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, e.Details[k])
	}
	return attrs
}

// IsStallError returns true if the error is a scheduling stall.
// Uses errors.As to handle wrapped errors.
func IsStallError(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeSchedulingStall
	}
	return false
}

// IsStartupError returns true if the error is a resource-creation failure.
// Uses errors.As to handle wrapped errors.
func IsStartupError(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeResourceCreation
	}
	return false
}

// NewStallError creates a FatalError for a work list that did not drain.
func NewStallError(frame int64, pending, busy int, timeout string, stuck []string) *FatalError {
	return &FatalError{
		Code:    ErrCodeSchedulingStall,
		Message: "collision work list did not drain within safety timeout",
		Frame:   frame,
		Details: map[string]string{
			"pending":        fmt.Sprintf("%d", pending),
			"busy_workers":   fmt.Sprintf("%d", busy),
			"safety_timeout": timeout,
			"stuck_pairs":    fmt.Sprintf("%v", stuck),
		},
	}
}

// NewStartupError creates a FatalError for a failed engine start.
func NewStartupError(msg string) *FatalError {
	return &FatalError{
		Code:    ErrCodeResourceCreation,
		Message: msg,
	}
}

// FatalHandler receives fatal errors. Handlers used in production must not
// return; test handlers may, in which case the engine refuses further work.
type FatalHandler func(*FatalError)

// DefaultFatalHandler logs the diagnostic and exits with ExitCodeFatal.
func DefaultFatalHandler(err *FatalError) {
	slog.Error("collision pipeline halted", err.LogAttrs()...)
	os.Exit(ExitCodeFatal)
}
