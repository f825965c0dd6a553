// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrLengthMismatch   = errors.New("series length mismatch")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrMalformedMessage = errors.New("malformed message")
	ErrDeliveryFailure  = errors.New("delivery failure")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
)

// DataError reports that an indicator was given fewer points than it needs.
type DataError struct {
	Indicator string
	Need      int
	Got       int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: need %d values, got %d: %v", e.Indicator, e.Need, e.Got, ErrInsufficientData)
}

func (e *DataError) Unwrap() error {
	return ErrInsufficientData
}

// NewDataError creates a new DataError.
func NewDataError(indicator string, need, got int) *DataError {
	return &DataError{
		Indicator: indicator,
		Need:      need,
		Got:       got,
	}
}

// ProtocolError represents a bad message received on a broadcaster connection.
type ProtocolError struct {
	ConnID string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error [%s]: %s: %v", e.ConnID, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error [%s]: %s", e.ConnID, e.Reason)
}

// Unwrap always yields ErrMalformedMessage first so callers can match the category.
func (e *ProtocolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedMessage, e.Err}
	}
	return []error{ErrMalformedMessage}
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(connID, reason string, err error) *ProtocolError {
	return &ProtocolError{
		ConnID: connID,
		Reason: reason,
		Err:    err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
