package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatMalformed  ErrorCategory = "malformed"          // Structurally invalid event payload
	ErrCatOrphaned   ErrorCategory = "orphaned"           // Reference to an unknown task, turn or invocation
	ErrCatTransition ErrorCategory = "invalid_transition" // State machine guard rejected the change
	ErrCatValidation ErrorCategory = "validation"         // Invalid input
	ErrCatNotFound   ErrorCategory = "not_found"          // Resource not found
	ErrCatTransport  ErrorCategory = "transport"          // Backend connection failure
	ErrCatInternal   ErrorCategory = "internal"           // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrMalformed creates an error for a structurally invalid event.
func ErrMalformed(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatMalformed,
		Code:     code,
		Message:  message,
	}
}

// ErrOrphaned creates an error for an event referencing an unknown entity.
func ErrOrphaned(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatOrphaned,
		Code:     "UNKNOWN_" + resourceCode(resource),
		Message:  fmt.Sprintf("unknown %s: %s", resource, id),
	}
}

// ErrTransition creates an error for a rejected state transition.
func ErrTransition(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatTransition,
		Code:     code,
		Message:  message,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrTransport creates a transport error.
func ErrTransport(message string) *DomainError {
	return &DomainError{
		Category: ErrCatTransport,
		Code:     CodeTransportFailed,
		Message:  message,
	}
}

func resourceCode(resource string) string {
	switch resource {
	case "task":
		return "TASK"
	case "turn":
		return "TURN"
	case "invocation":
		return "INVOCATION"
	default:
		return "REFERENCE"
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// IsAnomaly reports whether err is one of the non-fatal ingest anomalies.
func IsAnomaly(err error) bool {
	switch GetCategory(err) {
	case ErrCatMalformed, ErrCatOrphaned, ErrCatTransition:
		return true
	default:
		return false
	}
}

// Predefined error codes
const (
	CodeEmptyText        = "EMPTY_TEXT"
	CodeMissingField     = "MISSING_FIELD"
	CodeUnknownKind      = "UNKNOWN_TOOL_KIND"
	CodeUnknownOutcome   = "UNKNOWN_OUTCOME"
	CodeUnknownEvent     = "UNKNOWN_EVENT"
	CodeKindMismatch     = "RESULT_KIND_MISMATCH"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeNotRunning       = "TASK_NOT_RUNNING"
	CodeTaskBusy         = "TASK_ALREADY_RUNNING"
	CodeDuplicateTask    = "DUPLICATE_TASK"
	CodeDuplicateTurn    = "DUPLICATE_TURN"
	CodeDuplicateTool    = "DUPLICATE_INVOCATION"
	CodeTurnClosed       = "TURN_CLOSED"
	CodeResultImmutable  = "RESULT_IMMUTABLE"
	CodeNoActiveTask     = "NO_ACTIVE_TASK"
	CodeTransportFailed  = "TRANSPORT_FAILED"
	CodeSubmitRejected   = "SUBMIT_REJECTED"
	CodeInvalidPage      = "INVALID_PAGE"
	CodeInvalidPageSize  = "INVALID_PAGE_SIZE"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeInvalidScenario  = "INVALID_SCENARIO"
	CodeInvalidSelection = "INVALID_SELECTION"
	CodeInvalidPolicy    = "INVALID_POLICY"
)
