package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/repsync/internal/ledger"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
)

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "sets", Message: "must not be negative, got -1"}
	assert.Equal(t, "invalid sets: must not be negative, got -1", err.Error())
}

func TestErrorPredicates_SeeThroughWrapping(t *testing.T) {
	validation := fmt.Errorf("ui: %w", &ValidationError{Field: "name"})
	concurrent := fmt.Errorf("ui: %w", &ledger.ConcurrentOperationError{})
	rem := fmt.Errorf("ui: %w", &remote.Error{Op: "toggle exercise", Status: 503})
	notFound := fmt.Errorf("ui: %w", &state.NotFoundError{RoutineID: "7"})

	assert.True(t, IsValidation(validation))
	assert.True(t, IsConcurrentOperation(concurrent))
	assert.True(t, IsRemote(rem))
	assert.True(t, IsNotFound(notFound))

	assert.False(t, IsValidation(rem))
	assert.False(t, IsConcurrentOperation(notFound))
	assert.False(t, IsRemote(concurrent))
	assert.False(t, IsNotFound(validation))
}

func TestValidatePatch(t *testing.T) {
	empty := ""
	negIdx := -1
	ok := "Row"

	assert.True(t, IsValidation(validatePatch(state.Patch{Name: &empty})))
	assert.True(t, IsValidation(validatePatch(state.Patch{OrderIndex: &negIdx})))
	assert.NoError(t, validatePatch(state.Patch{Name: &ok}))
	assert.NoError(t, validatePatch(state.Patch{}))
}
