package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so controllers can map them to
// HTTP statuses without string matching.
type ErrorKind string

const (
	ErrKindValidation   ErrorKind = "VALIDATION"
	ErrKindNotFound     ErrorKind = "NOT_FOUND"
	ErrKindUnauthorized ErrorKind = "UNAUTHORIZED"
	ErrKindRateLimited  ErrorKind = "RATE_LIMITED"
	ErrKindUpstream     ErrorKind = "UPSTREAM"
	ErrKindCredential   ErrorKind = "CREDENTIAL"
)

// ServiceError is the error type returned by all service operations.
type ServiceError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter string // only set for RATE_LIMITED, from the Retry-After header
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// AsServiceError unwraps err into a *ServiceError if possible
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// NewValidationError reports a guard failure the caller can correct
func NewValidationError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthorizedError reports a caller that doesn't own the resource and
// isn't an admin
func NewUnauthorizedError(format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrKindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NewRateLimitError reports a 429 from an upstream API. Never retried
// automatically; retryAfter carries the upstream Retry-After header value.
func NewRateLimitError(retryAfter string) *ServiceError {
	return &ServiceError{
		Kind:       ErrKindRateLimited,
		Message:    "Too many requests. Please try again later.",
		RetryAfter: retryAfter,
	}
}

// NewUpstreamError reports a non-200 or unexpected payload from an
// upstream API
func NewUpstreamError(err error, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrKindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewCredentialError reports a failed token refresh
func NewCredentialError(err error, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Kind: ErrKindCredential, Message: fmt.Sprintf(format, args...), Err: err}
}
