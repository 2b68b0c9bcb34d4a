package queryir

import (
	"errors"
	"fmt"
)

// CompileError is a deterministic compile-time failure.
//
// Compile errors are programming-model errors: the same plan always fails
// the same way, and retrying is never meaningful.
type CompileError struct {
	// Code identifies the error category.
	Code CompileErrorCode

	// Path is the property path or reference that caused the error.
	Path string

	// Message is a human-readable description.
	Message string
}

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeUnsupportedPredicate indicates an operator with no mapping for
	// the property's type.
	ErrCodeUnsupportedPredicate CompileErrorCode = "UNSUPPORTED_PREDICATE"

	// ErrCodeTypeMismatch indicates a string operator used against a
	// non-string property or value.
	ErrCodeTypeMismatch CompileErrorCode = "TYPE_MISMATCH"

	// ErrCodeMissingMetadata indicates a path or reference the entity does
	// not declare.
	ErrCodeMissingMetadata CompileErrorCode = "MISSING_METADATA"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newCompileError(code CompileErrorCode, path, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// IsUnsupportedPredicate returns true if err is an unsupported-predicate error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedPredicate(err error) bool {
	return hasCode(err, ErrCodeUnsupportedPredicate)
}

// IsTypeMismatch returns true if err is a type-mismatch error.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsMissingMetadata returns true if err is a missing-metadata error.
func IsMissingMetadata(err error) bool {
	return hasCode(err, ErrCodeMissingMetadata)
}

func hasCode(err error, code CompileErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
