// Package errors provides the error kinds surfaced by the Moodle web-service client.
package errors

import (
	"errors"
	"fmt"
)

// AuthError indicates a call was attempted without credentials.
// It is raised locally, before any network activity.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication error"
	}
	return "authentication error: " + e.Reason
}

// NewMissingTokenError creates the AuthError returned when no token is configured.
func NewMissingTokenError() *AuthError {
	return &AuthError{Reason: "missing token"}
}

// TransportError indicates the HTTP exchange did not end with status 200.
// StatusCode is 0 when no response was received at all.
type TransportError struct {
	StatusCode int    // final HTTP status, 0 if the request never completed
	Message    string // transport-level error text, may be empty
	Err        error  // underlying net/http error, if any
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Message != "":
		return fmt.Sprintf("transport error: %s", e.Message)
	case e.StatusCode == 0:
		return "transport error"
	case e.Message != "":
		return fmt.Sprintf("transport error (HTTP %d): %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("transport error: HTTP %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError carries an exception envelope returned by the Moodle server.
// Error() is the server-supplied message only; debug details are never included.
type RemoteError struct {
	Exception string // e.g. "moodle_exception", "webservice_access_exception"
	ErrorCode string // e.g. "invalidtoken"
	Message   string // human-readable message from the server
}

func (e *RemoteError) Error() string {
	return e.Message
}

// DecodeError indicates a status-200 response whose body is not valid JSON.
type DecodeError struct {
	Message string // what was being parsed, e.g. "failed to parse response"
	Err     error  // underlying encoding/json error
}

func (e *DecodeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "failed to decode response"
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError indicates invalid input parameters.
type ValidationError struct {
	Field   string // field name that failed validation
	Value   string // the invalid value (may be empty for sensitive data)
	Message string // human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("validation failed for %s=%q: %s", e.Field, e.Value, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsAuth returns true if err is or wraps an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsTransport returns true if err is or wraps a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsRemote returns true if err is or wraps a RemoteError.
func IsRemote(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// IsDecode returns true if err is or wraps a DecodeError.
func IsDecode(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// StatusCode returns the HTTP status carried by a TransportError in err's chain, or 0.
func StatusCode(err error) int {
	var target *TransportError
	if errors.As(err, &target) {
		return target.StatusCode
	}
	return 0
}
