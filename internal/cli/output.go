package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/queryir"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a descriptor, query or scenario failed
	ExitCommandError = 2 // bad arguments, missing files, unknown method
)

// Error codes for query execution. Load and descriptor codes live in the
// compiler package (E0xx); statement rendering uses E201.
const (
	ErrCodeQuery         = "E301"
	ErrCodeCardinality   = "E302"
	ErrCodeNotFound      = "E303"
	ErrCodeUnsupported   = "E310"
	ErrCodeTypeMismatch  = "E311"
	ErrCodeMissingSchema = "E312"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// QueryErrorCode classifies an error returned while executing a method.
func QueryErrorCode(err error) string {
	switch {
	case errors.Is(err, materialize.ErrCardinality):
		return ErrCodeCardinality
	case errors.Is(err, materialize.ErrNotFound):
		return ErrCodeNotFound
	case queryir.IsUnsupportedPredicate(err):
		return ErrCodeUnsupported
	case queryir.IsTypeMismatch(err):
		return ErrCodeTypeMismatch
	case queryir.IsMissingMetadata(err):
		return ErrCodeMissingSchema
	}
	return ErrCodeQuery
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command in json format.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// Success writes data in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Emit writes data as a JSON envelope, or hands the writer to text.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.isJSON() {
		return f.Success(data)
	}
	return text(f.Writer)
}

// Error writes an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if f.Verbose && details != nil {
		_, err := fmt.Fprintf(f.Writer, "Details: %v\n", details)
		return err
	}
	return nil
}

// Fail reports a failed query and returns the ExitError for it. In text
// format only the returned error is printed, by Execute.
func (f *OutputFormatter) Fail(code int, message string, err error) error {
	if f.isJSON() {
		_ = f.Error(QueryErrorCode(err), message, err.Error())
	}
	return WrapExitError(code, message, err)
}

// VerboseLog writes a diagnostic line when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.diagnostics(), format+"\n", args...)
	}
}

func (f *OutputFormatter) diagnostics() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
