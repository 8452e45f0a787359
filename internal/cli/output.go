package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/ordinal/internal/engine"
	"github.com/roach88/ordinal/internal/order"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Reorder rejected or failed, scenarios failed
	ExitCommandError = 2 // Command error (bad arguments, invalid config, database unavailable)
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
// Returns ExitFailure (1) if the error is not an ExitError.
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

// reorderExitCode maps an engine error to an exit code: bad input is a
// command error, everything else a failure.
func reorderExitCode(err error) int {
	if engine.IsValidation(err) {
		return ExitCommandError
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
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "VALIDATION", "REJECTED", "E_NOT_FOUND", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with its String method or fmt defaults.
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
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
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

// itemList renders items as a table in text mode and a JSON array otherwise.
type itemList []order.Item

func (l itemList) String() string {
	if len(l) == 0 {
		return "(no items)"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POSITION\tID\tGROUP\tTITLE")
	for _, it := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Position, it.ID, it.GroupID, it.Title)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func (l itemList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]order.Item(l))
}

// reorderResult wraps engine.Result with a one-line text form.
type reorderResult struct {
	Op string `json:"op"`
	engine.Result
}

func (r reorderResult) String() string {
	s := fmt.Sprintf("%s %s: %s (%d changes, %d writes) op_id=%s",
		r.Op, r.GroupID, r.Kind, len(r.Changes), r.Writes, r.OpID)
	for _, c := range r.Changes {
		s += fmt.Sprintf("\n  %s %d -> %d", c.ItemID, c.From, c.To)
	}
	if len(r.Order) > 0 {
		s += "\n  order: " + strings.Join(r.Order, " ")
	}
	return s
}

// reportReorderError writes a failed reorder in JSON mode and returns the
// ExitError for it. Text mode leaves printing to the caller of Execute.
func reportReorderError(f *OutputFormatter, op string, res engine.Result, err error) error {
	code := "TRANSPORT"
	var re *engine.ReorderError
	if errors.As(err, &re) {
		code = string(re.Code)
	}
	if f.Format == "json" {
		if encErr := f.Error(code, err.Error(), reorderResult{Op: op, Result: res}); encErr != nil {
			return encErr
		}
	}
	return WrapExitError(reorderExitCode(err), op+" failed", err)
}
