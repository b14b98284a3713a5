package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repsync/internal/state"
)

func sampleResult() *Result {
	weight := 80.0
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Kind: "add", RoutineID: "7", ExerciseID: "temp-id-1", Outcome: OutcomeCommitted},
		{Seq: 2, Kind: "toggle", RoutineID: "7", ExerciseID: "1", Outcome: OutcomeRolledBack, Error: "boom"},
		{Seq: 3, Kind: "delete", RoutineID: "7", ExerciseID: "2", Outcome: OutcomeCommitted},
	}
	r.Final = state.Routine{
		ID: "7",
		Exercises: []state.Exercise{
			{ID: "1", Name: "Squat", Sets: 5, Reps: "5", Weight: &weight, OrderIndex: 0},
			{ID: "100", Name: "Calf Raise", Sets: 4, Reps: "12", OrderIndex: 2},
		},
	}
	return r
}

func TestAssertJournalCount(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertJournalCount(r.Trace, Assertion{Count: 3}))
	assert.NoError(t, assertJournalCount(r.Trace, Assertion{Outcome: OutcomeCommitted, Count: 2}))
	assert.NoError(t, assertJournalCount(r.Trace, Assertion{Kind: "toggle", Outcome: OutcomeRolledBack, Count: 1}))
	assert.NoError(t, assertJournalCount(r.Trace, Assertion{Kind: "update", Count: 0}))

	err := assertJournalCount(r.Trace, Assertion{Kind: "add", Count: 2})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 entries", ae.Actual)
}

func TestAssertJournalOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertJournalOrder(r.Trace, Assertion{Kinds: []string{"add", "delete"}}))
	assert.NoError(t, assertJournalOrder(r.Trace, Assertion{Kinds: []string{"add", "toggle", "delete"}}))

	err := assertJournalOrder(r.Trace, Assertion{Kinds: []string{"delete", "add"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched only [delete]")
}

func TestAssertFinalState(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertFinalState(r, Assertion{Exercise: "1", Expect: map[string]any{"weight": 80, "reps": "5"}}))
	assert.NoError(t, assertFinalState(r, Assertion{Exercise: "2", Absent: true}))

	err := assertFinalState(r, Assertion{Exercise: "1", Expect: map[string]any{"completed": true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exercise 1 completed = true")

	err = assertFinalState(r, Assertion{Exercise: "1", Absent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "present")

	err = assertFinalState(r, Assertion{Exercise: "42", Expect: map[string]any{"sets": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exercise not found")
}

func TestAssertExerciseOrder(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertExerciseOrder(r, Assertion{IDs: []string{"1", "100"}}))

	err := assertExerciseOrder(r, Assertion{IDs: []string{"100", "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: [1 100]")
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertJournalCount, Count: 3},
		{Type: AssertExerciseOrder, IDs: []string{"1"}},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "exercise_order")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("broken")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"broken"}, r.Errors)
}
