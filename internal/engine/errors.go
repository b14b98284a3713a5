package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/repsync/internal/ledger"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
)

// ValidationError reports input rejected before any optimistic mutation.
// The store and ledger are untouched when it is returned.
type ValidationError struct {
	// Field is the JSON name of the offending field.
	Field string

	// Message describes the constraint.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation returns true if err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConcurrentOperation returns true if the operation was rejected because
// another one is in flight on the same scope.
func IsConcurrentOperation(err error) bool {
	return ledger.IsConcurrentOperation(err)
}

// IsRemote returns true if the operation failed remotely and was rolled back.
func IsRemote(err error) bool {
	return remote.IsRemote(err)
}

// IsNotFound returns true if the routine or exercise does not exist.
func IsNotFound(err error) bool {
	return state.IsNotFound(err)
}

func validateExercise(ex state.Exercise) error {
	if isBlank(ex.Name) {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if ex.Sets < 0 {
		return &ValidationError{Field: "sets", Message: fmt.Sprintf("must not be negative, got %d", ex.Sets)}
	}
	if ex.Weight != nil && *ex.Weight < 0 {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("must not be negative, got %g", *ex.Weight)}
	}
	return nil
}

func validatePatch(p state.Patch) error {
	if p.Name != nil && isBlank(*p.Name) {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if p.Sets != nil && *p.Sets < 0 {
		return &ValidationError{Field: "sets", Message: fmt.Sprintf("must not be negative, got %d", *p.Sets)}
	}
	if p.Weight != nil && *p.Weight < 0 {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("must not be negative, got %g", *p.Weight)}
	}
	if p.OrderIndex != nil && *p.OrderIndex < 0 {
		return &ValidationError{Field: "orderIndex", Message: fmt.Sprintf("must not be negative, got %d", *p.OrderIndex)}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
