package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/repsync/internal/state"
)

// AssertionError is returned when an assertion fails.
// It includes the journal to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full journal for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nJournal:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s/%s %s\n", ev.Seq, ev.Kind, ev.RoutineID, ev.ExerciseID, ev.Outcome)
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertJournalCount:
			err = assertJournalCount(result.Trace, a)
		case AssertJournalOrder:
			err = assertJournalOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		case AssertExerciseOrder:
			err = assertExerciseOrder(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertJournalCount checks that exactly Count entries match Kind and
// Outcome. Empty filters match everything.
func assertJournalCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.Kind != "" && ev.Kind != a.Kind {
			continue
		}
		if a.Outcome != "" && ev.Outcome != a.Outcome {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertJournalCount,
		Expected: fmt.Sprintf("%d entries (kind=%q outcome=%q)", a.Count, a.Kind, a.Outcome),
		Actual:   fmt.Sprintf("%d entries", count),
		Trace:    trace,
	}
}

// assertJournalOrder checks that Kinds occur in the journal in order.
// Intervening entries are allowed.
func assertJournalOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Kinds) && ev.Kind == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertJournalOrder,
		Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
		Actual:   fmt.Sprintf("matched only %v", a.Kinds[:next]),
		Trace:    trace,
	}
}

// assertFinalState checks one exercise of the final routine.
func assertFinalState(result *Result, a Assertion) error {
	ex, found := findExercise(result.Final, state.ID(a.Exercise))

	if a.Absent {
		if !found {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exercise %s absent", a.Exercise),
			Actual:   "present",
			Trace:    result.Trace,
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exercise %s with %v", a.Exercise, a.Expect),
			Actual:   "exercise not found",
			Trace:    result.Trace,
		}
	}

	actual, err := toJSONMap(ex)
	if err != nil {
		return err
	}
	expected, err := toJSONMap(a.Expect)
	if err != nil {
		return err
	}
	for field, want := range expected {
		if got, ok := actual[field]; !ok || !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("exercise %s %s = %v", a.Exercise, field, want),
				Actual:   fmt.Sprintf("%v", got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertExerciseOrder checks the final exercise IDs, in order.
func assertExerciseOrder(result *Result, a Assertion) error {
	ids := make([]string, 0, len(result.Final.Exercises))
	for _, ex := range result.Final.Exercises {
		ids = append(ids, ex.ID.String())
	}
	if reflect.DeepEqual(ids, append([]string{}, a.IDs...)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertExerciseOrder,
		Expected: fmt.Sprintf("%v", a.IDs),
		Actual:   fmt.Sprintf("%v", ids),
		Trace:    result.Trace,
	}
}

func findExercise(r state.Routine, id state.ID) (state.Exercise, bool) {
	for _, ex := range r.Exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return state.Exercise{}, false
}

// toJSONMap round-trips v through JSON so YAML and Go values compare equal
// (numbers become float64).
func toJSONMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode for comparison: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode for comparison: %w", err)
	}
	return m, nil
}
