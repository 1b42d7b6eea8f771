package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TAFetcherError struct {
	Message string
	Cause   error
}

func (e *TAFetcherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TAFetcherError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As
type ConfigurationError struct{ TAFetcherError }
type NetworkError struct{ TAFetcherError }
type VendorError struct{ TAFetcherError }
type DatabaseError struct{ TAFetcherError }
type ValidationError struct{ TAFetcherError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{TAFetcherError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{TAFetcherError{Message: msg, Cause: cause}}
}

func NewVendorError(msg string, cause error) error {
	return &VendorError{TAFetcherError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{TAFetcherError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{TAFetcherError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	ErrMalformedBatch          = errors.New("malformed batch")
	ErrNotLoggedIn             = errors.New("vendor session not logged in")
	ErrLoginRejected           = errors.New("vendor login rejected")
	ErrSymbolAlreadySubscribed = errors.New("symbol already subscribed")
	ErrSymbolNotSubscribed     = errors.New("symbol not subscribed")
	ErrHandoffStopped          = errors.New("handoff wait stopped")
	ErrHandoffTimeout          = errors.New("handoff wait timed out")
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential backoff.
// The wait between attempts is abandoned when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}
