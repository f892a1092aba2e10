package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"token-vesting-go/internal/token"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected by a ledger or the vester
	ExitCommandError = 2 // Command error (bad flags, missing deployment, etc.)
)

// ExitError carries the exit code a command failure maps to
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses. Kind is the ledger error kind when known.
type CLIError struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Success writes data as JSON, or calls text for human-readable output
func (f *OutputFormatter) Success(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	text(f.Writer)
	return nil
}

// Failure reports a rejected operation and returns it as an ExitFailure
func (f *OutputFormatter) Failure(message string, err error) error {
	kind := string(token.KindOf(err))
	if f.Format == "json" {
		if encErr := json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Kind: kind, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else if kind != "" {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", kind, err)
	} else {
		fmt.Fprintf(f.Writer, "Error: %s\n", err)
	}
	return WrapExitError(ExitFailure, message, err)
}
