package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when a referenced user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrExpenseNotFound is returned when a referenced expense does not exist
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrRuleNotFound is returned when a referenced approval rule does not exist
	ErrRuleNotFound = errors.New("approval rule not found")

	// ErrInvalidAmount is returned for zero, negative or unparsable amounts
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrValidation is the parent of every input validation failure
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a single rejected input field
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
