package payments

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or out-of-range caller input. It maps to a
// 4xx response and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError marks missing or inconsistent provider configuration.
// Surfaces as 500 at request time; the request cannot succeed until the
// deployment is fixed.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ProviderError marks an upstream provider failure (network error, timeout or
// non-2xx response). Retrying is the caller's decision, not the core's.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConflictError marks an attempted illegal ledger state transition. The
// update is rejected, never applied.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IsClientError reports whether an error is the caller's fault (4xx) as
// opposed to an upstream or deployment failure (5xx).
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether an error is a rejected ledger transition.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
