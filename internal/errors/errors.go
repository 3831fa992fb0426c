package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given error code
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Predefined error codes
const (
	CodeMalformedPoset    = "MALFORMED_POSET"
	CodeDimensionMismatch = "DIMENSION_MISMATCH"
	CodeInvalidModelID    = "INVALID_MODEL_ID"
	CodeInvalidRelation   = "INVALID_RELATION"
	CodeFitFailure        = "FIT_FAILURE"
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Common error constructors

// MalformedPoset signals a cyclic or inconsistent nesting graph (construction-time, fatal).
func MalformedPoset(message string) *AppError {
	return New(CodeMalformedPoset, message)
}

// DimensionMismatch signals data whose shape disagrees with the family's structural parameters.
func DimensionMismatch(message string) *AppError {
	return New(CodeDimensionMismatch, message)
}

// InvalidModelID signals an out-of-range model identifier.
func InvalidModelID(id, numModels int) *AppError {
	return New(CodeInvalidModelID, fmt.Sprintf("model id %d out of range [1, %d]", id, numModels))
}

// InvalidRelation signals a model pair not related by the nesting poset.
func InvalidRelation(super, sub int) *AppError {
	return New(CodeInvalidRelation, fmt.Sprintf("model %d is not reachable from model %d in the poset", sub, super))
}

// FitFailure signals optimizer non-convergence for a single model; scoring of
// other models proceeds and the offending entry is reported unavailable.
func FitFailure(model int, cause error) *AppError {
	return &AppError{
		Code:    CodeFitFailure,
		Message: fmt.Sprintf("maximum likelihood fit failed for model %d", model),
		Cause:   cause,
	}
}

// IsFitFailure reports whether err is a recoverable per-model fit failure.
func IsFitFailure(err error) bool {
	return HasCode(err, CodeFitFailure)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}
