package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/repsync/internal/state"
)

// Scenario defines a scripted run of exercise mutations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Routine is loaded on both the backend and the client before the flow.
	Routine RoutineSpec `yaml:"routine"`

	// Flow contains the mutations, run in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the journal and the final routine.
	Assertions []Assertion `yaml:"assertions"`
}

// RoutineSpec is the initial routine.
type RoutineSpec struct {
	ID        string         `yaml:"id"`
	Date      string         `yaml:"date,omitempty"`
	Title     string         `yaml:"title,omitempty"`
	Exercises []ExerciseSpec `yaml:"exercises"`
}

// ExerciseSpec describes an exercise of the initial routine, or the draft of
// an add step (where id and orderIndex are ignored).
type ExerciseSpec struct {
	ID         string   `yaml:"id,omitempty"`
	Name       string   `yaml:"name"`
	Sets       int      `yaml:"sets"`
	Reps       string   `yaml:"reps"`
	Weight     *float64 `yaml:"weight,omitempty"`
	MainTarget string   `yaml:"mainTarget,omitempty"`
	SubTargets []string `yaml:"subTargets,omitempty"`
	Completed  bool     `yaml:"completed,omitempty"`
	OrderIndex int      `yaml:"orderIndex"`
}

// PatchSpec is the patch of an update step. Absent fields are unchanged.
type PatchSpec struct {
	Name        *string   `yaml:"name,omitempty"`
	Sets        *int      `yaml:"sets,omitempty"`
	Reps        *string   `yaml:"reps,omitempty"`
	Weight      *float64  `yaml:"weight,omitempty"`
	ClearWeight bool      `yaml:"clearWeight,omitempty"`
	MainTarget  *string   `yaml:"mainTarget,omitempty"`
	SubTargets  *[]string `yaml:"subTargets,omitempty"`
	OrderIndex  *int      `yaml:"orderIndex,omitempty"`
}

// Step is one mutation.
type Step struct {
	// Op is one of toggle, add, update, delete.
	Op string `yaml:"op"`

	// Exercise is the target exercise ID (toggle, update, delete).
	Exercise string `yaml:"exercise,omitempty"`

	// Draft is the new exercise (add).
	Draft *ExerciseSpec `yaml:"draft,omitempty"`

	// Patch is the change set (update).
	Patch *PatchSpec `yaml:"patch,omitempty"`

	// Fail makes the backend reject this step's request.
	Fail *FailSpec `yaml:"fail,omitempty"`

	// Expect checks the step's outcome. Defaults to committed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// FailSpec is an injected backend failure.
type FailSpec struct {
	Status  int    `yaml:"status"`
	Message string `yaml:"message"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// Outcome is committed, rolled_back, rejected or refused.
	Outcome string `yaml:"outcome"`

	// Error is a substring of the returned error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the journal or the final routine.
type Assertion struct {
	// Type is one of journal_count, journal_order, final_state,
	// exercise_order.
	Type string `yaml:"type"`

	// Kind and Outcome filter journal entries (journal_count).
	Kind    string `yaml:"kind,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matching entries (journal_count).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected kind order (journal_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Exercise is the exercise to inspect (final_state).
	Exercise string `yaml:"exercise,omitempty"`

	// Absent expects the exercise not to exist (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Expect contains expected field values, keyed by JSON field name
	// (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// IDs is the expected exercise order (exercise_order).
	IDs []string `yaml:"ids,omitempty"`
}

// Step and assertion type constants.
const (
	OpToggle = "toggle"
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"

	AssertJournalCount  = "journal_count"
	AssertJournalOrder  = "journal_order"
	AssertFinalState    = "final_state"
	AssertExerciseOrder = "exercise_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Routine.ID == "" {
		return fmt.Errorf("routine.id is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	switch step.Op {
	case OpToggle, OpDelete:
		if step.Exercise == "" {
			return fmt.Errorf("flow[%d]: exercise is required for %s", index, step.Op)
		}
	case OpUpdate:
		if step.Exercise == "" {
			return fmt.Errorf("flow[%d]: exercise is required for update", index)
		}
		if step.Patch == nil {
			return fmt.Errorf("flow[%d]: patch is required for update", index)
		}
	case OpAdd:
		if step.Draft == nil {
			return fmt.Errorf("flow[%d]: draft is required for add", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if step.Fail != nil && (step.Fail.Status < 400 || step.Fail.Status > 599) {
		return fmt.Errorf("flow[%d].fail: status must be 4xx or 5xx", index)
	}

	if step.Expect != nil {
		switch step.Expect.Outcome {
		case OutcomeCommitted, OutcomeRolledBack, OutcomeRejected, OutcomeRefused:
		default:
			return fmt.Errorf("flow[%d].expect: unknown outcome %q", index, step.Expect.Outcome)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertJournalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for journal_order", index)
		}
	case AssertFinalState:
		if a.Exercise == "" {
			return fmt.Errorf("assertions[%d]: exercise is required for final_state", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertExerciseOrder:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// routine converts the scenario routine to a state.Routine.
func (r RoutineSpec) routine() state.Routine {
	out := state.Routine{
		ID:        state.ID(r.ID),
		Date:      r.Date,
		Title:     r.Title,
		Exercises: make([]state.Exercise, 0, len(r.Exercises)),
	}
	for _, ex := range r.Exercises {
		out.Exercises = append(out.Exercises, ex.exercise())
	}
	return out
}

func (e ExerciseSpec) exercise() state.Exercise {
	return state.Exercise{
		ID:         state.ID(e.ID),
		Name:       e.Name,
		Sets:       e.Sets,
		Reps:       state.Reps(e.Reps),
		Weight:     e.Weight,
		MainTarget: e.MainTarget,
		SubTargets: e.SubTargets,
		Completed:  e.Completed,
		OrderIndex: e.OrderIndex,
	}
}

func (p PatchSpec) patch() state.Patch {
	out := state.Patch{
		Name:        p.Name,
		Sets:        p.Sets,
		Weight:      p.Weight,
		ClearWeight: p.ClearWeight,
		MainTarget:  p.MainTarget,
		SubTargets:  p.SubTargets,
		OrderIndex:  p.OrderIndex,
	}
	if p.Reps != nil {
		reps := state.Reps(*p.Reps)
		out.Reps = &reps
	}
	return out
}
