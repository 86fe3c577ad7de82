package api

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServerError indicates a server-side error
	ErrServerError = errors.New("server error")

	// ErrTimeout indicates the request timed out or was cancelled
	ErrTimeout = errors.New("request timed out")

	// ErrNetwork indicates an upstream call failed after all retries, or
	// the upstream rejected the query
	ErrNetwork = errors.New("network error")

	// ErrStationNotFound indicates a station name or code is not in the station table
	ErrStationNotFound = errors.New("station not found")

	// ErrStopSequence indicates a train's stop sequence could not be retrieved
	ErrStopSequence = errors.New("stop sequence unavailable")
)

// APIError represents a non-200 response from the upstream
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error %d: %s (endpoint: %s)", e.StatusCode, e.Status, e.Endpoint)
}

// Is implements errors.Is for APIError
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrServerError:
		return e.StatusCode >= 500
	case ErrInvalidRequest:
		return e.StatusCode == 400
	}
	return false
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, status, endpoint string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Status:     status,
		Endpoint:   endpoint,
	}
}

// NetworkError is returned once the retry budget is spent, or when a query
// response reports status false. Err holds the last attempt's failure.
type NetworkError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("network error (%s) after %d attempts: %s", e.Endpoint, e.Attempts, msg)
	}
	return fmt.Sprintf("network error (%s): %s", e.Endpoint, msg)
}

// Is implements errors.Is for NetworkError
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// newNetworkError wraps the last attempt's error, carrying its status code if any
func newNetworkError(endpoint string, attempts int, err error) *NetworkError {
	ne := &NetworkError{Endpoint: endpoint, Attempts: attempts, Err: err}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		ne.StatusCode = apiErr.StatusCode
		ne.Message = apiErr.Status
	}
	return ne
}

// StopSequenceError reports a failure fetching or decoding one train's stops
type StopSequenceError struct {
	TrainNo string
	Err     error
}

func (e *StopSequenceError) Error() string {
	return fmt.Sprintf("stop sequence for train %s: %v", e.TrainNo, e.Err)
}

// Is implements errors.Is for StopSequenceError
func (e *StopSequenceError) Is(target error) bool {
	return target == ErrStopSequence
}

func (e *StopSequenceError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error for request parameters
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Is implements errors.Is for ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Common validation errors
func ErrMissingField(field string) error {
	return NewValidationError(field, "field is required")
}

func ErrInvalidFormat(field, expected string) error {
	return NewValidationError(field, fmt.Sprintf("invalid format, expected %s", expected))
}
