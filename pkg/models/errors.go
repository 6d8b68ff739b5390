package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType identifies a wire-stable API error variant.
type ErrorType string

const (
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeMisdirected  ErrorType = "MISDIRECTED"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeRateLimited  ErrorType = "RATE_LIMITED"
	ErrorTypeServer       ErrorType = "SERVER"
)

// APIError is the error shape every Eludris endpoint returns.
//
// The wire body is always {type, status, message} plus the variant-specific
// fields below. Domain and store layers return *APIError values; the HTTP
// adapters serialize them and attach rate limit headers.
type APIError struct {
	Type    ErrorType `json:"type"`
	Status  int       `json:"status"`
	Message string    `json:"message"`

	// ValueName and Info are set for VALIDATION errors.
	ValueName string `json:"value_name,omitempty"`
	Info      string `json:"info,omitempty"`

	// Item is set for CONFLICT errors and names the clashing field.
	Item string `json:"item,omitempty"`

	// RetryAfter is set for RATE_LIMITED errors, in milliseconds.
	RetryAfter int64 `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type == ErrorTypeValidation {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.ValueName, e.Info)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is allows errors.Is matching on the error type alone.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

func ErrUnauthorized() *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthorized,
		Status:  http.StatusUnauthorized,
		Message: "The request lacks valid authentication credentials",
	}
}

func ErrForbidden() *APIError {
	return &APIError{
		Type:    ErrorTypeForbidden,
		Status:  http.StatusForbidden,
		Message: "You are not allowed to perform this action",
	}
}

func ErrNotFound() *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Status:  http.StatusNotFound,
		Message: "The requested resource could not be found",
	}
}

// ErrConflict reports a uniqueness clash on the named item, e.g. "username".
func ErrConflict(item string) *APIError {
	return &APIError{
		Type:    ErrorTypeConflict,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("The provided %s clashes with an existing one", item),
		Item:    item,
	}
}

// ErrMisdirected reports a request the instance cannot serve at all, e.g. a
// password reset when email is disabled.
func ErrMisdirected(info string) *APIError {
	return &APIError{
		Type:    ErrorTypeMisdirected,
		Status:  http.StatusMisdirectedRequest,
		Message: info,
	}
}

// ErrValidation reports an invalid value. valueName identifies the offending
// field, info explains the constraint that failed.
func ErrValidation(valueName, info string) *APIError {
	return &APIError{
		Type:      ErrorTypeValidation,
		Status:    http.StatusUnprocessableEntity,
		Message:   "Invalid request data",
		ValueName: valueName,
		Info:      info,
	}
}

// ErrRateLimited reports that a bucket is exhausted. retryAfter is the wait
// until the window resets, in milliseconds.
func ErrRateLimited(retryAfter int64) *APIError {
	return &APIError{
		Type:       ErrorTypeRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "You have been rate limited",
		RetryAfter: retryAfter,
	}
}

// ErrServer wraps an internal failure. The info string must already be
// sanitized; raw driver errors never reach the wire.
func ErrServer(info string) *APIError {
	return &APIError{
		Type:    ErrorTypeServer,
		Status:  http.StatusInternalServerError,
		Message: info,
	}
}

// AsAPIError coerces err into an *APIError, mapping unknown errors to a
// sanitized SERVER error so infrastructure failures never leak details.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServer("An unexpected error occurred")
}

// WriteJSON serializes the error to an http.ResponseWriter.
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
