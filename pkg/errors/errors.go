// Package errors provides structured error handling for the ingestion pipeline.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapability represents capability/feature not supported errors
	ErrorTypeCapability ErrorType = "capability"
)

// Code enumerates the failure classes of the ingestion pipeline. Every
// fatal condition the pipeline can raise maps to exactly one code, so
// callers can branch on codes instead of matching message text.
type Code string

const (
	// CodeCannotInferEmptySchema is raised when schema inference is
	// attempted over zero records and no schema was supplied.
	CodeCannotInferEmptySchema Code = "CANNOT_INFER_EMPTY_SCHEMA"
	// CodeInvalidNDArrayDimension is raised for array input whose rank is
	// neither 1 nor 2.
	CodeInvalidNDArrayDimension Code = "INVALID_NDARRAY_DIMENSION"
	// CodeAxisLengthMismatch is raised when a declared column count
	// disagrees with the produced column count. Details carry
	// "expected_length" and "actual_length".
	CodeAxisLengthMismatch Code = "AXIS_LENGTH_MISMATCH"
	// CodeCannotMergeType is raised for two incompatible types during
	// schema merging. Details carry "left" and "right".
	CodeCannotMergeType Code = "CANNOT_MERGE_TYPE"
	// CodeCannotDetermineType is raised when a field remains untyped
	// (all null) after inference completes.
	CodeCannotDetermineType Code = "CANNOT_DETERMINE_TYPE"
	// CodeInvalidType is raised when the input value is structurally not
	// one of the supported shapes, or is itself a produced table.
	CodeInvalidType Code = "INVALID_TYPE"
	// CodeUnsupportedDataTypeForArrow is raised when a declared type has
	// no Arrow encoding.
	CodeUnsupportedDataTypeForArrow Code = "UNSUPPORTED_DATA_TYPE_FOR_ARROW"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Cause != nil:
		return fmt.Sprintf("%s: [%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	case e.Code != "":
		return fmt.Sprintf("%s: [%s] %s", e.Type, e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// NewCoded creates a new error carrying an enumerable pipeline code
func NewCoded(errType ErrorType, code Code, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack and code
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Code:    existingErr.Code,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsCode checks if the error carries the given pipeline code
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the pipeline code of an error, or the empty code
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// Detail looks up a detail value attached to the error
func Detail(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
