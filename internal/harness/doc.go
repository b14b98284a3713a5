// Package harness runs scripted synchronizer scenarios and checks the
// resulting operation journal.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: toggle_rollback
//	description: "A rejected toggle restores the exercise"
//	routine:
//	  id: "7"
//	  exercises:
//	    - { id: "1", name: Squat, sets: 5, reps: "5", orderIndex: 0 }
//	flow:
//	  - op: toggle
//	    exercise: "1"
//	    fail: { status: 503, message: maintenance }
//	    expect: { outcome: rolled_back, error: maintenance }
//	assertions:
//	  - type: journal_count
//	    outcome: rolled_back
//	    count: 1
//	  - type: final_state
//	    exercise: "1"
//	    expect: { completed: false }
//
// Steps run one after another against a fake backend (testutil.Backend)
// through the real HTTP client. A step's fail clause makes the backend
// reject that one request.
//
// # Assertion Types
//
//   - journal_count: exactly N journal entries match kind and/or outcome
//   - journal_order: the kinds appear in the journal in this order
//   - final_state: an exercise in the final routine has the expected fields,
//     or is absent
//   - exercise_order: the final routine's exercise IDs, in order
//
// # Deterministic Testing
//
// Temporary IDs come from testutil.SequentialIDGenerator, server IDs count
// up from 100 and the journal lives in an in-memory SQLite database, so the
// trace of a scenario is identical on every run and can be compared with a
// golden file (see RunWithGolden).
package harness
