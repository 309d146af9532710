package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sooq/internal/compiler"
	"github.com/roach88/sooq/internal/engine"
	"github.com/roach88/sooq/internal/expr"
	"github.com/roach88/sooq/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query or validation failure (unsupported construct, invalid mapping, failed scenario, etc.)
	ExitCommandError = 2 // Command error (bad flags, missing files, database unreachable, etc.)
)

// Error codes carried by JSON error responses besides the ir taxonomy
// codes (UNSUPPORTED_CONSTRUCT, SCHEMA_RESOLUTION, CHAIN_STATE,
// CARDINALITY, EMPTY_AGGREGATE).
const (
	ErrCodeSyntax        = "SYNTAX"         // query text does not parse
	ErrCodeInvalidSchema = "INVALID_SCHEMA" // mapping document failed validation
	ErrCodeExecution     = "EXECUTION"      // the database rejected a statement
	ErrCodeScenario      = "SCENARIO"       // a scenario assertion failed
	ErrCodeCommand       = "COMMAND"        // anything else
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
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps err to its response code and exit code.
func classify(err error) (string, int) {
	if code := ir.CodeOf(err); code != "" {
		return string(code), ExitFailure
	}
	var syntaxErr *expr.SyntaxError
	var validationErrs compiler.ValidationErrors
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &syntaxErr):
		return ErrCodeSyntax, ExitFailure
	case errors.As(err, &validationErrs), errors.As(err, &compileErr):
		return ErrCodeInvalidSchema, ExitFailure
	case engine.IsExecError(err):
		return ErrCodeExecution, ExitFailure
	}
	return ErrCodeCommand, ExitCommandError
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
	Code    string `json:"code"`              // taxonomy or CLI error code
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// texter is implemented by payloads with a custom text rendering.
type texter interface {
	Text() string
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	if t, ok := data.(texter); ok {
		_, err := fmt.Fprint(f.Writer, t.Text())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
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

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// The response code comes from the error taxonomy when err carries one.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	var details any
	var ie *ir.Error
	if errors.As(err, &ie) && (ie.Node != "" || len(ie.Details) > 0) {
		details = map[string]any{"node": ie.Node, "details": ie.Details}
	}
	var validationErrs compiler.ValidationErrors
	if errors.As(err, &validationErrs) {
		details = []compiler.ValidationError(validationErrs)
	}
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
