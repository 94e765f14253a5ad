package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation failure or failed scenarios
	ExitCommandError = 2 // Command error (invalid paths, unreadable specs, bad flags)
)

// Error codes for failures that are not compiler errors.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeWriteFailed = "E007"
	ErrCodeCaptures    = "E008"
	ErrCodeCache       = "E009"
	ErrCodeSQL         = "E010"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
	NoColor   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // first error
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E250", "E003", etc.
	Message string `json:"message"`           // human-readable message
	Source  string `json:"source,omitempty"`  // "file:line" of the predicate
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Errors outputs one or more errors. JSON carries the first error in
// "error" and all of them in "data".
func (f *OutputFormatter) Errors(errs []CLIError) error {
	if len(errs) == 0 {
		return nil
	}
	if f.JSON() {
		return f.encode(CLIResponse{Status: "error", Error: &errs[0], Data: errs})
	}
	for _, e := range errs {
		f.Fail("[%s] %s", e.Code, e.Message)
		if e.Source != "" {
			fmt.Fprintf(f.Writer, "    at %s\n", e.Source)
		}
		if f.Verbose && e.Details != nil {
			fmt.Fprintf(f.Writer, "    details: %v\n", e.Details)
		}
	}
	return nil
}

// Error outputs a single error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.Errors([]CLIError{{Code: code, Message: message, Details: details}})
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// OK prints a green check line.
func (f *OutputFormatter) OK(format string, args ...any) {
	f.mark(color.FgGreen, "✓", format, args...)
}

// Fail prints a red cross line.
func (f *OutputFormatter) Fail(format string, args ...any) {
	f.mark(color.FgRed, "✗", format, args...)
}

// Warn prints a yellow warning line.
func (f *OutputFormatter) Warn(format string, args ...any) {
	f.mark(color.FgYellow, "!", format, args...)
}

func (f *OutputFormatter) mark(attr color.Attribute, symbol, format string, args ...any) {
	c := color.New(attr)
	if f.NoColor {
		c.DisableColor()
	}
	c.Fprint(f.Writer, symbol)
	fmt.Fprintf(f.Writer, " "+format+"\n", args...)
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
