package engine

import (
	"context"
	"slices"

	"github.com/roach88/repsync/internal/ledger"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
)

// ToggleCompleted flips the completed flag of an exercise.
//
// The flip is visible in the store immediately. If the server rejects it, the
// completed flag is set back to its snapshot value rather than toggled
// again. Other fields are left alone, since an update on another scope may
// have committed in the meantime.
func (e *Engine) ToggleCompleted(ctx context.Context, routineID, exerciseID state.ID) error {
	_, err := Execute(ctx, e, Operation[state.Exercise]{
		Scope:   ledger.ScopeKey{RoutineID: routineID, ExerciseID: exerciseID, Kind: ledger.KindToggle},
		Capture: e.captureExercise(routineID, exerciseID),
		Apply: func(s *state.Store) error {
			cur, err := s.Exercise(routineID, exerciseID)
			if err != nil {
				return err
			}
			cur.Completed = !cur.Completed
			return s.ReplaceExercise(routineID, cur)
		},
		Call: func(ctx context.Context) (state.Exercise, error) {
			return e.remote.ToggleCompleted(ctx, routineID, exerciseID)
		},
		Reconcile: confirmExercise(routineID, exerciseID),
		Restore:   restoreCompleted,
	})
	return err
}

// AddExercise inserts draft at the end of the routine under a temporary ID
// and replaces it with the server's exercise once confirmed.
//
// The draft's ID, OrderIndex and Completed fields are ignored: the exercise
// is appended after the current last one and starts incomplete. On failure
// the temporary exercise is removed.
func (e *Engine) AddExercise(ctx context.Context, routineID state.ID, draft state.Exercise) (state.Exercise, error) {
	if err := validateExercise(draft); err != nil {
		return state.Exercise{}, err
	}

	tempID := state.ID(state.TempPrefix + e.ids.Generate())
	var optimistic state.Exercise

	return Execute(ctx, e, Operation[state.Exercise]{
		Scope: ledger.ScopeKey{RoutineID: routineID, ExerciseID: tempID, Kind: ledger.KindAdd},
		Capture: func(s *state.Store) (ledger.Snapshot, error) {
			if _, ok := s.Routine(routineID); !ok {
				return ledger.Snapshot{}, &state.NotFoundError{RoutineID: routineID}
			}
			return ledger.Snapshot{RoutineID: routineID, ExerciseID: tempID}, nil
		},
		Apply: func(s *state.Store) error {
			r, ok := s.Routine(routineID)
			if !ok {
				return &state.NotFoundError{RoutineID: routineID}
			}
			optimistic = draft.Clone()
			optimistic.ID = tempID
			optimistic.Completed = false
			optimistic.OrderIndex = nextOrderIndex(r)
			return s.UpsertExercise(routineID, optimistic)
		},
		Call: func(ctx context.Context) (state.Exercise, error) {
			return e.remote.AddExercise(ctx, routineID, optimistic)
		},
		Reconcile: func(s *state.Store, created state.Exercise) error {
			if created.ID == "" {
				return &remote.Error{Op: "add exercise", Message: "response has no exercise id"}
			}
			return s.ReplaceExerciseID(routineID, tempID, created)
		},
		Restore: func(s *state.Store, snap ledger.Snapshot) error {
			_, err := s.RemoveExercise(routineID, tempID)
			return err
		},
	})
}

// UpdateExercise applies patch optimistically and then replaces the exercise
// with the server's confirmed value. The server receives the whole patched
// exercise.
//
// On failure only the patched fields are reverted, and only where they still
// hold the optimistic value.
func (e *Engine) UpdateExercise(ctx context.Context, routineID, exerciseID state.ID, patch state.Patch) (state.Exercise, error) {
	if err := validatePatch(patch); err != nil {
		return state.Exercise{}, err
	}

	var optimistic state.Exercise
	confirmed, err := Execute(ctx, e, Operation[state.Exercise]{
		Scope:   ledger.ScopeKey{RoutineID: routineID, ExerciseID: exerciseID, Kind: ledger.KindUpdate},
		Capture: e.captureExercise(routineID, exerciseID),
		Apply: func(s *state.Store) error {
			cur, err := s.Exercise(routineID, exerciseID)
			if err != nil {
				return err
			}
			optimistic = patch.Apply(cur)
			return s.ReplaceExercise(routineID, optimistic)
		},
		Call: func(ctx context.Context) (state.Exercise, error) {
			return e.remote.UpdateExercise(ctx, routineID, exerciseID, optimistic)
		},
		Reconcile: confirmExercise(routineID, exerciseID),
		Restore:   revertPatch(routineID, exerciseID, patch, &optimistic),
	})
	if err != nil {
		return state.Exercise{}, err
	}
	if confirmed.ID == "" {
		return optimistic, nil
	}
	confirmed.ID = exerciseID
	return confirmed, nil
}

// DeleteExercise removes an exercise optimistically. On failure it is
// re-inserted at its original orderIndex. On success it is removed again, in
// case a reload brought it back while the call was in flight.
func (e *Engine) DeleteExercise(ctx context.Context, routineID, exerciseID state.ID) error {
	_, err := Execute(ctx, e, Operation[struct{}]{
		Scope:   ledger.ScopeKey{RoutineID: routineID, ExerciseID: exerciseID, Kind: ledger.KindDelete},
		Capture: e.captureExercise(routineID, exerciseID),
		Apply: func(s *state.Store) error {
			_, err := s.RemoveExercise(routineID, exerciseID)
			return err
		},
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.remote.DeleteExercise(ctx, routineID, exerciseID)
		},
		Reconcile: func(s *state.Store, _ struct{}) error {
			_, err := s.RemoveExercise(routineID, exerciseID)
			return ignoreNotFound(err)
		},
		Restore: func(s *state.Store, snap ledger.Snapshot) error {
			if !snap.Present() {
				return nil
			}
			return s.UpsertExercise(snap.RoutineID, *snap.Exercise)
		},
	})
	return err
}

// captureExercise snapshots an existing exercise. A temporary exercise whose
// add is still in flight cannot be mutated until the server assigns its ID.
func (e *Engine) captureExercise(routineID, exerciseID state.ID) func(*state.Store) (ledger.Snapshot, error) {
	return func(s *state.Store) (ledger.Snapshot, error) {
		if exerciseID.IsTemporary() {
			addScope := ledger.ScopeKey{RoutineID: routineID, ExerciseID: exerciseID, Kind: ledger.KindAdd}
			if e.ledger.InFlight(addScope) {
				return ledger.Snapshot{}, &ledger.ConcurrentOperationError{Scope: addScope}
			}
		}
		ex, err := s.Exercise(routineID, exerciseID)
		if err != nil {
			return ledger.Snapshot{}, err
		}
		return ledger.Snapshot{RoutineID: routineID, ExerciseID: exerciseID, Exercise: &ex}, nil
	}
}

// confirmExercise replaces the exercise with the server's value. A response
// without an ID carries no entity, so the optimistic value stands. An
// exercise deleted in the meantime stays deleted.
func confirmExercise(routineID, exerciseID state.ID) func(*state.Store, state.Exercise) error {
	return func(s *state.Store, confirmed state.Exercise) error {
		if confirmed.ID == "" {
			return nil
		}
		confirmed.ID = exerciseID
		return ignoreNotFound(s.ReplaceExercise(routineID, confirmed))
	}
}

// restoreCompleted puts the snapshot's completed flag back if the exercise
// still exists.
func restoreCompleted(s *state.Store, snap ledger.Snapshot) error {
	if !snap.Present() {
		return nil
	}
	cur, err := s.Exercise(snap.RoutineID, snap.ExerciseID)
	if err != nil {
		return ignoreNotFound(err)
	}
	cur.Completed = snap.Exercise.Completed
	return s.ReplaceExercise(snap.RoutineID, cur)
}

// revertPatch returns a Restore that sets each field named by patch back to
// its snapshot value, unless something else changed the field after the
// optimistic apply.
func revertPatch(routineID, exerciseID state.ID, patch state.Patch, optimistic *state.Exercise) func(*state.Store, ledger.Snapshot) error {
	return func(s *state.Store, snap ledger.Snapshot) error {
		if !snap.Present() {
			return nil
		}
		cur, err := s.Exercise(routineID, exerciseID)
		if err != nil {
			return ignoreNotFound(err)
		}
		prev, opt := snap.Exercise.Clone(), *optimistic

		if patch.Name != nil && cur.Name == opt.Name {
			cur.Name = prev.Name
		}
		if patch.Sets != nil && cur.Sets == opt.Sets {
			cur.Sets = prev.Sets
		}
		if patch.Reps != nil && cur.Reps == opt.Reps {
			cur.Reps = prev.Reps
		}
		if (patch.Weight != nil || patch.ClearWeight) && sameWeight(cur.Weight, opt.Weight) {
			cur.Weight = prev.Weight
		}
		if patch.MainTarget != nil && cur.MainTarget == opt.MainTarget {
			cur.MainTarget = prev.MainTarget
		}
		if patch.SubTargets != nil && slices.Equal(cur.SubTargets, opt.SubTargets) {
			cur.SubTargets = prev.SubTargets
		}
		if patch.OrderIndex != nil && cur.OrderIndex == opt.OrderIndex {
			cur.OrderIndex = prev.OrderIndex
		}
		return s.ReplaceExercise(routineID, cur)
	}
}

func sameWeight(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ignoreNotFound(err error) error {
	if state.IsNotFound(err) {
		return nil
	}
	return err
}

func nextOrderIndex(r state.Routine) int {
	if len(r.Exercises) == 0 {
		return 0
	}
	return r.Exercises[len(r.Exercises)-1].OrderIndex + 1
}
