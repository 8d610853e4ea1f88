// Package errors provides the structured error system for MediaStash with
// typed kinds, HTTP-style status codes, and retry eligibility.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a failure into one of a closed set of kinds.
type ErrorKind string

const (
	KindValidation      ErrorKind = "VALIDATION"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindTooLarge        ErrorKind = "TOO_LARGE"
	KindUnsupportedType ErrorKind = "UNSUPPORTED_TYPE"
	KindStorage         ErrorKind = "STORAGE"
	KindConfiguration   ErrorKind = "CONFIGURATION"
	KindNetwork         ErrorKind = "NETWORK"
	KindQuotaExceeded   ErrorKind = "QUOTA_EXCEEDED"
	KindSecurity        ErrorKind = "SECURITY"
	KindDuplicate       ErrorKind = "DUPLICATE"
	KindMaintenance     ErrorKind = "MAINTENANCE"
)

// Kinds lists every error kind. The set is closed: classification always
// lands on exactly one of these, with KindStorage as the catch-all.
var Kinds = []ErrorKind{
	KindValidation,
	KindNotFound,
	KindTooLarge,
	KindUnsupportedType,
	KindStorage,
	KindConfiguration,
	KindNetwork,
	KindQuotaExceeded,
	KindSecurity,
	KindDuplicate,
	KindMaintenance,
}

// statusByKind maps each kind to its fixed HTTP-style status code.
var statusByKind = map[ErrorKind]int{
	KindValidation:      400,
	KindNotFound:        404,
	KindTooLarge:        413,
	KindUnsupportedType: 415,
	KindStorage:         500,
	KindConfiguration:   500,
	KindNetwork:         503,
	KindQuotaExceeded:   429,
	KindSecurity:        403,
	KindDuplicate:       409,
	KindMaintenance:     503,
}

// retryableKinds holds the kinds considered transient. Everything else is
// terminal for retry purposes.
var retryableKinds = map[ErrorKind]bool{
	KindNetwork:       true,
	KindQuotaExceeded: true,
}

// HTTPStatus returns the fixed status code for a kind. Unknown kinds
// report 500, matching the KindStorage catch-all.
func HTTPStatus(kind ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return 500
}

// IsRetryable reports whether a kind is eligible for another attempt.
func IsRetryable(kind ErrorKind) bool {
	return retryableKinds[kind]
}

// StashError is a classified failure with context and metadata.
type StashError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Operational context
	Operation string            `json:"operation,omitempty"`
	Key       string            `json:"key,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	// Handling hints
	Retryable  bool `json:"retryable"`
	HTTPStatus int  `json:"http_status"`

	Cause error `json:"-"` // not serialized to avoid circular refs
}

// New creates a StashError with the defaults for its kind.
func New(kind ErrorKind, message string) *StashError {
	return &StashError{
		Kind:       kind,
		Message:    message,
		Timestamp:  time.Now(),
		Retryable:  IsRetryable(kind),
		HTTPStatus: HTTPStatus(kind),
	}
}

// Newf creates a StashError with a formatted message.
func Newf(kind ErrorKind, format string, args ...interface{}) *StashError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *StashError) Error() string {
	if e.Operation != "" {
		if e.Key != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Operation, e.Key, e.Kind, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Operation, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error-wrapping compatibility.
func (e *StashError) Unwrap() error {
	return e.Cause
}

// Is matches another StashError by kind (for errors.Is compatibility).
func (e *StashError) Is(target error) bool {
	if stashErr, ok := target.(*StashError); ok {
		return e.Kind == stashErr.Kind
	}
	return false
}

// String returns a detailed representation for logging.
func (e *StashError) String() string {
	parts := []string{
		fmt.Sprintf("Kind=%s", e.Kind),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("Key=%s", e.Key))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("StashError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *StashError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// WithOperation sets the operation the error occurred in.
func (e *StashError) WithOperation(operation string) *StashError {
	e.Operation = operation
	return e
}

// WithKey sets the storage key the error relates to.
func (e *StashError) WithKey(key string) *StashError {
	e.Key = key
	return e
}

// WithCause sets the underlying cause.
func (e *StashError) WithCause(cause error) *StashError {
	e.Cause = cause
	return e
}

// WithDetail adds a contextual detail to the error.
func (e *StashError) WithDetail(key, value string) *StashError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}
