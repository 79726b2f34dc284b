// Package errors defines the error taxonomy shared by every engine component.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	ErrorTypeProvider      ErrorType = "PROVIDER"
	ErrorTypeInternal      ErrorType = "INTERNAL"
)

// AppError is the custom error type for the engine. Callers can inspect the
// Type and Retryable fields to automate retry policy at the boundary.
type AppError struct {
	Type      ErrorType
	Message   string
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error. Raised before any mutation;
// never retryable.
func NewValidation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewValidationf creates a validation error with a formatted message.
func NewValidationf(format string, args ...any) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewNotFoundf creates a not found error with a formatted message.
func NewNotFoundf(format string, args ...any) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string) error {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewProvider creates a provider error. Provider failures (slow or failing
// embedding backend) are the only retryable category.
func NewProvider(message string, err error) error {
	return &AppError{
		Type:      ErrorTypeProvider,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:      appErr.Type,
			Message:   fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:       appErr.Err,
			Retryable: appErr.Retryable,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ErrorTypeValidation
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ErrorTypeNotFound
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ErrorTypeConfiguration
}

// IsProvider checks if an error is a provider error
func IsProvider(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == ErrorTypeProvider
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retryable
}

// Outcome is the uniform structured failure shape handed to boundary
// callers so retry policy can be automated.
type Outcome struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// OutcomeFrom converts any error into an Outcome. Unknown error types map
// to INTERNAL, non-retryable.
func OutcomeFrom(err error) *Outcome {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &Outcome{
			Code:      string(appErr.Type),
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		}
	}
	return &Outcome{
		Code:    string(ErrorTypeInternal),
		Message: err.Error(),
	}
}
