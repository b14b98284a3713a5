package state

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a routine, or an exercise within a routine,
// does not exist in the store.
//
// ExerciseID is empty when the routine itself is missing.
type NotFoundError struct {
	RoutineID  ID
	ExerciseID ID
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ExerciseID != "" {
		return fmt.Sprintf("exercise %s not found in routine %s", e.ExerciseID, e.RoutineID)
	}
	return fmt.Sprintf("routine %s not found", e.RoutineID)
}

// IsNotFound returns true if err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func routineNotFound(routineID ID) *NotFoundError {
	return &NotFoundError{RoutineID: routineID}
}

func exerciseNotFound(routineID, exerciseID ID) *NotFoundError {
	return &NotFoundError{RoutineID: routineID, ExerciseID: exerciseID}
}
