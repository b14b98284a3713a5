package store

import "encoding/json"

// Outcome is how an operation settled.
type Outcome string

const (
	// OutcomeCommitted means the remote call succeeded and the confirmed
	// value replaced the optimistic one.
	OutcomeCommitted Outcome = "committed"

	// OutcomeRolledBack means the remote call failed and the snapshot was
	// restored.
	OutcomeRolledBack Outcome = "rolled_back"

	// OutcomeRejected means the operation never started, because another one
	// was in flight on the same scope.
	OutcomeRejected Outcome = "rejected"
)

// Operation is one journal entry.
//
// Snapshot holds the pre-operation exercise as JSON (null for adds), Result
// the server-confirmed value (null on failure).
type Operation struct {
	ID         string
	Seq        int64
	Kind       string
	RoutineID  string
	ExerciseID string
	Outcome    Outcome
	Error      string
	Snapshot   json.RawMessage
	Result     json.RawMessage
}
