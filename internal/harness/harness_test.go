package harness

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repsync/internal/engine"
	"github.com/roach88/repsync/internal/ledger"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/edit_routine.yaml")
	require.NoError(t, err)

	first, err := Run(t, scenario)
	require.NoError(t, err)
	second, err := Run(t, scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(TraceSnapshot{ScenarioName: scenario.Name, Trace: first.Trace, Final: first.Final})
	require.NoError(t, err)
	b, err := MarshalSnapshot(TraceSnapshot{ScenarioName: scenario.Name, Trace: second.Trace, Final: second.Final})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "A committed toggle expected to roll back"
routine:
  id: "7"
  exercises:
    - { id: "1", name: Squat, sets: 5, reps: "5", orderIndex: 0 }
flow:
  - op: toggle
    exercise: "1"
    expect: { outcome: rolled_back }
`))
	require.NoError(t, err)

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "outcome committed, want rolled_back")
}

func TestRun_ErrorMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_error
description: "The server message differs from the expected one"
routine:
  id: "7"
  exercises:
    - { id: "1", name: Squat, sets: 5, reps: "5", orderIndex: 0 }
flow:
  - op: delete
    exercise: "1"
    fail: { status: 500, message: disk full }
    expect: { outcome: rolled_back, error: maintenance }
`))
	require.NoError(t, err)

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `want it to contain "maintenance"`)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failed_assertion
description: "The final state check fails"
routine:
  id: "7"
  exercises:
    - { id: "1", name: Squat, sets: 5, reps: "5", orderIndex: 0 }
flow:
  - op: toggle
    exercise: "1"
assertions:
  - type: final_state
    exercise: "1"
    expect: { completed: false }
`))
	require.NoError(t, err)

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: final_state")
	assert.Contains(t, result.Errors[0], "[1] toggle 7/1 committed")
}

func TestRun_MissingRoutine(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "d",
		Routine:     RoutineSpec{ID: "7"},
		Flow:        []Step{{Op: OpToggle, Exercise: "1"}},
	}

	result, err := Run(t, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "outcome refused")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, OutcomeCommitted},
		{"concurrent", &ledger.ConcurrentOperationError{Scope: ledger.ScopeKey{RoutineID: "7", ExerciseID: "1", Kind: ledger.KindToggle}}, OutcomeRejected},
		{"remote", &remote.Error{Op: "toggle exercise", Status: 503, Message: "maintenance"}, OutcomeRolledBack},
		{"validation", &engine.ValidationError{Field: "name", Message: "must not be empty"}, OutcomeRefused},
		{"not found", &state.NotFoundError{RoutineID: "7", ExerciseID: "9"}, OutcomeRefused},
		{"other", errors.New("reconcile failed"), OutcomeRolledBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
