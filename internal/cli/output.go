package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected action, failed scenario, divergent replay
	ExitCommandError = 2 // Command error (invalid paths, bad arguments, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
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
// Returns ExitSuccess for nil and ExitFailure for a plain error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`             // "ok" or "error"
	Data    any       `json:"data,omitempty"`     // success payload
	Error   *CLIError `json:"error,omitempty"`    // error details
	TraceID string    `json:"trace_id,omitempty"` // action id, when one was recorded
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // campaign or runtime error code
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// JSON output keeps diagnostics on ErrWriter so stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Outcome prints one executed command. A rejection is printed as an
// error response carrying the recorded action id and yields ExitFailure;
// any other error yields ExitCommandError.
func (f *OutputFormatter) Outcome(action string, out engine.Outcome, err error) error {
	if err != nil {
		code := engine.Code(err)
		exit := ExitFailure
		if !engine.IsRejected(err) {
			exit = ExitCommandError
		}
		if f.Format == "json" {
			if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{
				Status:  "error",
				Error:   &CLIError{Code: code, Message: err.Error()},
				TraceID: out.ActionID,
			}); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(f.Writer, "✗ %s rejected [%s]: %v\n", action, code, err)
			if out.ActionID != "" {
				fmt.Fprintf(f.Writer, "  seq %d, action %s\n", out.Seq, out.ActionID)
			}
		}
		return WrapExitError(exit, action+" failed", err)
	}

	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    out,
			TraceID: out.ActionID,
		})
	}

	fmt.Fprintf(f.Writer, "✓ %s", action)
	if out.Campaign != "" {
		fmt.Fprintf(f.Writer, " on %s", out.Campaign)
	}
	fmt.Fprintf(f.Writer, " (seq %d)\n", out.Seq)
	if len(out.Result) > 0 {
		fmt.Fprintf(f.Writer, "  result: %s\n", compactJSON(out.Result))
	}
	for _, m := range out.Movements {
		fmt.Fprintf(f.Writer, "  %s %s: %s -> %s\n", m.Amount, m.Asset, m.From, m.To)
	}
	if out.StateHash != "" && f.Verbose {
		fmt.Fprintf(f.Writer, "  state: %s\n", out.StateHash)
	}
	return nil
}

// compactJSON renders v canonically, falling back to %v.
func compactJSON(v any) string {
	b, err := canon.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

