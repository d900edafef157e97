package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrContentTooShort marks a fetched article whose content fell below
	// MinContentChars. Classified as a recoverable fetch failure (spec §7).
	ErrContentTooShort = errors.New("fetched content shorter than minimum")

	// ErrURLNotOwned marks a link handed to an adapter that does not
	// recognize it as belonging to its source. Terminal, non-retryable.
	ErrURLNotOwned = errors.New("url does not belong to this adapter")

	// ErrRetryExhausted is returned when a record's tried_count has
	// already reached MaxRetries and the caller attempts another try.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
