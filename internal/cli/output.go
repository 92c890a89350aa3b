package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/supercollider/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0                    // Successful execution
	ExitFailure      = 1                    // Failed assertion, golden mismatch or non-deterministic replay
	ExitCommandError = 2                    // Bad arguments, unreadable files, database errors
	ExitFatal        = engine.ExitCodeFatal // Collision pipeline halted
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// A FatalError maps to ExitFatal. Returns ExitFailure (1) for any other error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var fatal *engine.FatalError
	if errors.As(err, &fatal) {
		return ExitFatal
	}
	return ExitFailure
}

// CLIResponse is the envelope every command writes with --format json.
type CLIResponse struct {
	Status string    `json:"status"`           // "ok" or "error"
	Data   any       `json:"data,omitempty"`   // command payload
	Error  *CLIError `json:"error,omitempty"`  // error details
	RunID  string    `json:"run_id,omitempty"` // run the response refers to
	Digest string    `json:"digest,omitempty"` // trace digest of that run
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string            `json:"code"`              // E_ASSERTION, SCHEDULING_STALL, ...
	Message string            `json:"message"`           // human-readable message
	Frame   int64             `json:"frame,omitempty"`   // frame an engine halt happened in
	Details map[string]string `json:"details,omitempty"` // diagnostic key/values
}

// writeResponse encodes resp as indented JSON.
func writeResponse(w io.Writer, resp CLIResponse) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// fatalRecorder is an engine fatal handler that keeps the first error
// instead of exiting, so a command can report the halt in the requested
// format. The command then returns the error and exits with ExitFatal.
type fatalRecorder struct {
	logger *slog.Logger
	err    *engine.FatalError
}

func (r *fatalRecorder) handle(err *engine.FatalError) {
	r.logger.Error("collision pipeline halted", err.LogAttrs()...)
	if r.err == nil {
		r.err = err
	}
}

// option returns the engine option installing r.
func (r *fatalRecorder) option() engine.Option {
	return engine.WithFatalHandler(r.handle)
}

// haltError converts an engine halt to the response error shape.
func haltError(err *engine.FatalError) *CLIError {
	return &CLIError{
		Code:    string(err.Code),
		Message: err.Message,
		Frame:   err.Frame,
		Details: err.Details,
	}
}

// reportHalt writes a halted scenario and returns the fatal error.
func reportHalt(w io.Writer, format, scenario string, fatal *engine.FatalError) error {
	if format == "json" {
		if err := writeResponse(w, CLIResponse{Status: "error", Error: haltError(fatal)}); err != nil {
			return err
		}
		return fatal
	}

	fmt.Fprintf(w, "✗ %s halted\n", scenario)
	fmt.Fprintf(w, "  %s\n", fatal.Error())
	keys := make([]string, 0, len(fatal.Details))
	for k := range fatal.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, fatal.Details[k])
	}
	return fatal
}
