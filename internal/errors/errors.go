package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Type categorizes an error for handling and response mapping
type Type int

const (
	// Config errors - missing or invalid configuration
	TypeConfig Type = iota
	// Validation errors - invalid input data
	TypeValidation
	// NotFound errors - referenced change/impact/project does not exist
	TypeNotFound
	// Transition errors - acknowledgement transition not permitted from current state
	TypeTransition
	// Stale errors - compare-and-swap mismatch, concurrent modification won
	TypeStale
	// Policy errors - merge attempted while the gate evaluator says no
	TypePolicy
	// Database errors - database connection or query failures
	TypeDatabase
	// External errors - external collaborator failures (detector, redis, CI feed)
	TypeExternal
	// Internal errors - unexpected internal state
	TypeInternal
)

// Error is a structured error with a category and optional context
type Error struct {
	Type    Type
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches errors by type, so errors.Is(err, ErrStaleState) works
// regardless of message or context
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// DetailedString returns the message plus any attached context
func (e *Error) DetailedString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", typeString(e.Type), e.Message))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}
	if len(e.Context) > 0 {
		sb.WriteString("\nContext:")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", k, v))
		}
	}
	return sb.String()
}

func typeString(t Type) string {
	switch t {
	case TypeConfig:
		return "CONFIG"
	case TypeValidation:
		return "VALIDATION"
	case TypeNotFound:
		return "NOT_FOUND"
	case TypeTransition:
		return "INVALID_TRANSITION"
	case TypeStale:
		return "STALE_STATE"
	case TypePolicy:
		return "POLICY_VIOLATION"
	case TypeDatabase:
		return "DATABASE"
	case TypeExternal:
		return "EXTERNAL"
	case TypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Sentinel values for errors.Is checks at the caller boundary
var (
	ErrInvalidTransition = &Error{Type: TypeTransition, Message: "invalid transition"}
	ErrStaleState        = &Error{Type: TypeStale, Message: "stale state"}
	ErrNotFound          = &Error{Type: TypeNotFound, Message: "not found"}
	ErrPolicyViolation   = &Error{Type: TypePolicy, Message: "policy violation"}
)

// New creates a new error with the given type and message
func New(errType Type, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap wraps an existing error with a type and message
func Wrap(err error, errType Type, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// InvalidTransitionf creates a transition error describing the rejected move
func InvalidTransitionf(format string, args ...interface{}) *Error {
	return New(TypeTransition, fmt.Sprintf(format, args...))
}

// StaleStatef creates a CAS-mismatch error
func StaleStatef(format string, args ...interface{}) *Error {
	return New(TypeStale, fmt.Sprintf(format, args...))
}

// UnknownChange creates a not-found error for a change id
func UnknownChange(changeID string) *Error {
	return New(TypeNotFound, "unknown change").WithContext("change_id", changeID)
}

// UnknownImpact creates a not-found error for an impact row
func UnknownImpact(changeID, componentID, contributorID string) *Error {
	return New(TypeNotFound, "unknown impact").
		WithContext("change_id", changeID).
		WithContext("component_id", componentID).
		WithContext("contributor_id", contributorID)
}

// PolicyViolation creates a merge-gate rejection carrying the gate reason
func PolicyViolation(reason string) *Error {
	return New(TypePolicy, "merge blocked: "+reason).WithContext("gate_reason", reason)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(TypeValidation, fmt.Sprintf(format, args...))
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(TypeConfig, message)
}

// DatabaseError wraps a database error
func DatabaseError(err error, message string) *Error {
	return Wrap(err, TypeDatabase, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(TypeInternal, fmt.Sprintf(format, args...))
}

// Is reports whether err (or anything it wraps) carries the given type
func Is(err error, errType Type) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Type == errType {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetType returns the type of an error, TypeInternal for foreign errors
func GetType(err error) Type {
	if err == nil {
		return TypeInternal
	}
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Type
		}
		err = stderrors.Unwrap(err)
	}
	return TypeInternal
}
