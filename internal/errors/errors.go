package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess            = 0   // Indicates successful execution.
	ExitErrorGeneric       = 1   // Indicates a generic error.
	ExitErrorTimeout       = 2   // Indicates the operation timed out.
	ExitErrorNoProvider    = 3   // Indicates no provider could serve a request.
	ExitErrorConfig        = 4   // Indicates a configuration error.
	ExitErrorProvidersDown = 5   // Indicates every candidate provider failed.
	ExitErrorCanceled      = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ProviderError records the failure of a single provider while serving a
// request. The cause is opaque: network failures, bad credentials and quota
// errors are all treated the same way.
type ProviderError struct {
	// ProviderID identifies the provider that failed.
	ProviderID string
	// Cause is the underlying error returned by the provider.
	Cause error
}

// Error returns the provider id followed by the cause message.
func (e ProviderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("provider %s failed", e.ProviderID)
	}
	return fmt.Sprintf("provider %s: %v", e.ProviderID, e.Cause)
}

// Unwrap returns the original provider error.
func (e ProviderError) Unwrap() error { return e.Cause }

// NoProviderAvailableError is returned when no registered provider is both
// available and capable of serving a request. No provider was invoked.
type NoProviderAvailableError struct {
	// Kind is the request kind that could not be served.
	Kind string
}

// Error returns a formatted message naming the request kind.
func (e NoProviderAvailableError) Error() string {
	return fmt.Sprintf("no provider available for %q requests", e.Kind)
}

// Attempt is one failed provider invocation, kept for diagnostics.
type Attempt struct {
	// ProviderID identifies the provider that was tried.
	ProviderID string `json:"providerId"`
	// Message is the provider's error message.
	Message string `json:"message"`
	// Duration is how long the attempt took.
	Duration time.Duration `json:"-"`
}

// AllProvidersFailedError is returned when every candidate provider was
// attempted and failed. Attempts preserves candidate order.
type AllProvidersFailedError struct {
	// Kind is the request kind that could not be served.
	Kind string
	// Attempts lists every failed attempt in the order it was made.
	Attempts []Attempt
}

// Error returns a summary including each provider's failure message.
func (e AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed for %q requests (%s)", len(e.Attempts), e.Kind, e.Summary())
}

// Summary joins the attempts as "id: message" pairs separated by semicolons.
func (e AllProvidersFailedError) Summary() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.ProviderID, a.Message))
	}
	return strings.Join(parts, "; ")
}

// TimeoutError represents an operation timeout. It captures the operation
// name and the duration limit that was exceeded.
type TimeoutError struct {
	// Operation is the name of the operation that timed out.
	Operation string
	// Limit is the duration after which the operation was considered timed out.
	Limit time.Duration
}

// Error returns a formatted message describing the timeout.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Limit)
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Returns nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCodeFor maps an error returned by the generation pipeline to a process
// exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		noProvider NoProviderAvailableError
		allFailed  AllProvidersFailedError
		configErr  ConfigError
		validErr   ValidationError
		timeoutErr TimeoutError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &timeoutErr):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.As(err, &noProvider):
		return ExitErrorNoProvider
	case errors.As(err, &allFailed):
		return ExitErrorProvidersDown
	case errors.As(err, &configErr), errors.As(err, &validErr):
		return ExitErrorConfig
	}
	return ExitErrorGeneric
}

// HTTPStatusFor maps an error to the HTTP status code the API responds with.
func HTTPStatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var (
		noProvider NoProviderAvailableError
		allFailed  AllProvidersFailedError
		validErr   ValidationError
	)
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest
	case errors.As(err, &noProvider):
		return http.StatusServiceUnavailable
	case errors.As(err, &allFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
