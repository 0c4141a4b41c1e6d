package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Market data errors

var (
	// ErrDataValidation indicates upstream market data failed validation;
	// the scan cycle must abort without mutating state
	ErrDataValidation = errors.New("market data validation failed")

	// ErrInstrumentNotFound indicates instrument auto-detection failed
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrMarketClosed indicates the market session is not active
	ErrMarketClosed = errors.New("market closed")
)

// Signal and position errors

var (
	// ErrSignalRejected indicates a candidate signal failed validation
	ErrSignalRejected = errors.New("signal rejected")

	// ErrNoActivePosition indicates no position is currently open
	ErrNoActivePosition = errors.New("no active position")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// New creates a new error
func New(message string) error {
	return errors.New(message)
}
