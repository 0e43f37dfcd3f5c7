package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeClient      ErrorType = "client_error"
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeSchema      ErrorType = "schema"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a classified failure with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s error: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// FetchError is returned when a page cannot be fetched. The photo list is left unchanged.
type FetchError struct {
	URL    string
	Reason string
	Err    *Error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// ImageLoadError is returned when a single image cannot be fetched or decoded.
// It is never fatal: the rotation position still advances.
type ImageLoadError struct {
	URL    string
	Reason string
	Err    *Error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %s", e.URL, e.Reason)
}

func (e *ImageLoadError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// LoadError is returned when a persisted session cannot be read. Callers keep
// their in-memory state unchanged.
type LoadError struct {
	Location string
	Type     ErrorType
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load session from %s (%s): %v", e.Location, e.Type, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError is returned when a session snapshot cannot be written.
// No partial file is left behind.
type SaveError struct {
	Location string
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save session to %s: %v", e.Location, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// ErrNotFound marks a missing snapshot inside a LoadError
var ErrNotFound = stderrors.New("no saved session")

// NewLoadError builds a LoadError, classifying missing snapshots as not_found
func NewLoadError(location string, errType ErrorType, err error) *LoadError {
	return &LoadError{Location: location, Type: errType, Err: err}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// TypeOf extracts the ErrorType from any error in the taxonomy
func TypeOf(err error) ErrorType {
	var base *Error
	if stderrors.As(err, &base) {
		return base.Type
	}
	var loadErr *LoadError
	if stderrors.As(err, &loadErr) {
		return loadErr.Type
	}
	return ErrorTypeUnknown
}
