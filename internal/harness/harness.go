package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/roach88/repsync/internal/engine"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
	"github.com/roach88/repsync/internal/store"
	"github.com/roach88/repsync/internal/syncer"
	"github.com/roach88/repsync/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	journal *store.Store
	backend *testutil.Backend
	syncer  *syncer.Syncer
	routine state.ID
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh fake backend and a fresh in-memory
// journal. The returned error reports a harness failure (the journal could
// not be opened, the routine could not be loaded); failed expectations and
// assertions are reported in Result.Errors.
//
// Execution flow:
// 1. Start the backend with the scenario routine and load it into the client
// 2. Execute flow steps, checking each step's expected outcome
// 3. Read the journal and the final routine
// 4. Evaluate assertions
func Run(tb testing.TB, scenario *Scenario) (*Result, error) {
	tb.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer st.Close()

	backend := testutil.NewBackend(tb, scenario.Routine.routine())
	h := &Harness{
		journal: st,
		backend: backend,
		syncer: syncer.New(remote.New(backend.URL()),
			syncer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			syncer.WithEngineOptions(
				engine.WithJournal(st),
				engine.WithIDGenerator(testutil.NewSequentialIDGenerator("")),
			),
		),
		routine: state.ID(scenario.Routine.ID),
	}

	ctx := context.Background()
	if _, err := h.syncer.LoadRoutine(ctx, h.routine); err != nil {
		return nil, fmt.Errorf("failed to load routine: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		h.executeStep(ctx, i, step, result)
	}

	ops, err := st.ReadOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, op := range ops {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:        op.Seq,
			Kind:       op.Kind,
			RoutineID:  op.RoutineID,
			ExerciseID: op.ExerciseID,
			Outcome:    string(op.Outcome),
			Error:      op.Error,
		})
	}
	result.Final, _ = h.syncer.Store().Routine(h.routine)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step and records a failed expectation in result.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	if step.Fail != nil {
		h.backend.Fail(stepRoute(step.Op), step.Fail.Status, step.Fail.Message)
	}

	eid := state.ID(step.Exercise)
	var err error
	switch step.Op {
	case OpToggle:
		err = h.syncer.ToggleCompleted(ctx, h.routine, eid)
	case OpAdd:
		_, err = h.syncer.AddExercise(ctx, h.routine, step.Draft.exercise())
	case OpUpdate:
		_, err = h.syncer.UpdateExercise(ctx, h.routine, eid, step.Patch.patch())
	case OpDelete:
		err = h.syncer.DeleteExercise(ctx, h.routine, eid)
	}

	expect := StepExpect{Outcome: OutcomeCommitted}
	if step.Expect != nil {
		expect = *step.Expect
	}

	got := classify(err)
	if got != expect.Outcome {
		result.AddError(fmt.Sprintf("flow[%d] %s %s: outcome %s, want %s (error: %v)",
			index, step.Op, step.Exercise, got, expect.Outcome, err))
		return
	}
	if expect.Error != "" && (err == nil || !strings.Contains(err.Error(), expect.Error)) {
		result.AddError(fmt.Sprintf("flow[%d] %s %s: error %v, want it to contain %q",
			index, step.Op, step.Exercise, err, expect.Error))
	}
}

// classify maps an operation error to a step outcome.
func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case engine.IsConcurrentOperation(err):
		return OutcomeRejected
	case engine.IsRemote(err):
		return OutcomeRolledBack
	case engine.IsValidation(err), engine.IsNotFound(err):
		return OutcomeRefused
	default:
		return OutcomeRolledBack
	}
}

func stepRoute(op string) testutil.Route {
	switch op {
	case OpToggle:
		return testutil.RouteToggle
	case OpAdd:
		return testutil.RouteAdd
	case OpUpdate:
		return testutil.RouteUpdate
	default:
		return testutil.RouteDelete
	}
}
