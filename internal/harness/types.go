package harness

import "github.com/roach88/repsync/internal/state"

// Outcomes reported per step. The first three match journal outcomes;
// OutcomeRefused is an operation that failed validation or named a missing
// entity, so it never started and was not journaled.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
	OutcomeRefused    = "refused"
)

// TraceEvent is one journal entry.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	Kind       string `json:"kind"`
	RoutineID  string `json:"routine_id"`
	ExerciseID string `json:"exercise_id"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace is the journal in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final is the routine as the client store holds it after the flow.
	Final state.Routine `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
