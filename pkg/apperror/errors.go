// Package apperror provides a structured way to report router and device
// errors with specific codes, severity levels, and additional details. It
// also maps errors onto gRPC status codes, which the CLI uses to group
// failures into exit statuses and RPC callers see directly.
package apperror

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode represents a specific application error code.
type ErrorCode string

const (
	// Device / graph construction
	CodeInvalidGraph  ErrorCode = "INVALID_GRAPH"
	CodeEmptyGraph    ErrorCode = "EMPTY_GRAPH"
	CodeDanglingEdge  ErrorCode = "DANGLING_EDGE"
	CodeInvalidSwitch ErrorCode = "INVALID_SWITCH"
	CodeInvalidNode   ErrorCode = "INVALID_NODE"
	CodeInvalidDevice ErrorCode = "INVALID_DEVICE"
	CodeNonConfigSet  ErrorCode = "NON_CONFIG_SET"

	// Connection requests
	CodeInvalidTarget      ErrorCode = "INVALID_TARGET"
	CodeInvalidBoundingBox ErrorCode = "INVALID_BOUNDING_BOX"
	CodeInvalidCostParams  ErrorCode = "INVALID_COST_PARAMS"
	CodeInvalidRouteTree   ErrorCode = "INVALID_ROUTE_TREE"

	// Search outcomes
	CodeNoSource   ErrorCode = "NO_SOURCE"
	CodeUnroutable ErrorCode = "UNROUTABLE"

	// Router lifecycle
	CodeUnimplementedMode ErrorCode = "UNIMPLEMENTED_MODE"
	CodeRouterClosed      ErrorCode = "ROUTER_CLOSED"

	// General
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNilInput        ErrorCode = "NIL_INPUT"
	CodeTimeout         ErrorCode = "TIMEOUT"
)

// Severity defines the criticality level of an error.
type Severity int

const (
	// SeverityWarning indicates an expected, recoverable outcome (e.g. an unroutable connection).
	SeverityWarning Severity = iota
	// SeverityError indicates a standard error that requires attention.
	SeverityError
	// SeverityCritical indicates a caller contract violation; the run should abort.
	SeverityCritical
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a custom error type that includes an ErrorCode, message,
// an optional field, additional details, an underlying cause, and a severity level.
type Error struct {
	Code     ErrorCode      // Code is a unique identifier for the type of error.
	Message  string         // Message is a human-readable description of the error.
	Field    string         // Field indicates which input caused the error, if applicable.
	Details  map[string]any // Details provides additional structured information about the error.
	Cause    error          // Cause is the underlying error that triggered this application error.
	Severity Severity       // Severity indicates the criticality level of the error.
}

// Error implements the error interface, returning a string representation of the error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field: %s)", msg, e.Field)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the wrapped error, allowing for error chain introspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// GRPCStatus converts the application error into a gRPC status.Status.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.grpcCode(), e.Message)
}

// grpcCode maps an ErrorCode to an appropriate gRPC codes.Code.
func (e *Error) grpcCode() codes.Code {
	switch e.Code {
	case CodeInvalidGraph, CodeEmptyGraph, CodeDanglingEdge, CodeInvalidSwitch,
		CodeInvalidNode, CodeInvalidDevice, CodeNonConfigSet, CodeInvalidTarget,
		CodeInvalidBoundingBox, CodeInvalidCostParams, CodeInvalidRouteTree,
		CodeInvalidArgument, CodeNilInput:
		return codes.InvalidArgument

	case CodeNoSource, CodeUnroutable:
		return codes.FailedPrecondition

	case CodeNotFound:
		return codes.NotFound

	case CodeTimeout:
		return codes.DeadlineExceeded

	case CodeUnimplementedMode:
		return codes.Unimplemented

	case CodeRouterClosed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// New creates a new application error with the given code and message.
// The default severity is SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Details:  make(map[string]any),
		Severity: SeverityError,
	}
}

// Newf is New with a format string.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithField creates a new application error with the given code, message, and field.
func NewWithField(code ErrorCode, message, field string) *Error {
	err := New(code, message)
	err.Field = field
	return err
}

// NewWarning creates a new application error with SeverityWarning.
func NewWarning(code ErrorCode, message string) *Error {
	return New(code, message).WithSeverity(SeverityWarning)
}

// NewCritical creates a new application error with SeverityCritical.
func NewCritical(code ErrorCode, message string) *Error {
	return New(code, message).WithSeverity(SeverityCritical)
}

// Wrap creates a new application error that wraps an existing error,
// providing additional context with a code and message.
func Wrap(cause error, code ErrorCode, message string) *Error {
	err := New(code, message)
	err.Cause = cause
	return err
}

// WithDetails adds a key-value pair to the error's details map and returns the modified error.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithField sets the field associated with the error and returns the modified error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error and returns the modified error.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is checks if the given error is an application error with a matching ErrorCode.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the ErrorCode from an error. If the error is not an *Error,
// it returns CodeInternal.
func Code(err error) ErrorCode {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// ToGRPC converts an application error or any other error into a gRPC error status.
func ToGRPC(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.GRPCStatus().Err()
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	return status.Error(codes.Internal, err.Error())
}

// IsWarning checks if the given error is an application error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// IsCritical checks if the given error is an application error with SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// ValidationErrors collects the problems found while validating a device
// description, so a single load reports all of them at once.
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

// NewValidationErrors creates and returns a new empty ValidationErrors collection.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add appends an *Error to Errors or Warnings based on its Severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

// AddError creates and adds a new application error with SeverityError.
func (v *ValidationErrors) AddError(code ErrorCode, message string) {
	v.Errors = append(v.Errors, New(code, message))
}

// AddWarning creates and adds a new application error with SeverityWarning.
func (v *ValidationErrors) AddWarning(code ErrorCode, message string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message))
}

// HasErrors returns true if the collection contains any errors (non-warning severity).
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Err folds the collected errors into one *Error carrying the first code,
// or returns nil when there are none.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	first := v.Errors[0]
	if len(v.Errors) == 1 {
		return first
	}
	return New(first.Code, fmt.Sprintf("%s (and %d more)", first.Message, len(v.Errors)-1)).
		WithDetails("errors", v.ErrorMessages())
}

// ErrorMessages returns a slice of string messages for all collected errors.
func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}
