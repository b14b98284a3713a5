package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TempPrefix marks client-generated exercise IDs awaiting server confirmation.
const TempPrefix = "temp-"

// ID identifies a routine or an exercise.
//
// The server assigns numeric IDs, while the client uses string IDs of the
// form "temp-<uuid>" for optimistic inserts. Both decode into the same string
// identity so that 42 and "42" refer to the same entity.
type ID string

// IsTemporary reports whether the ID was generated client-side.
func (id ID) IsTemporary() bool {
	return strings.HasPrefix(string(id), TempPrefix)
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts a JSON number, string, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := numberOrString(data)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(s)
	return nil
}

// Reps is a repetition count: either a plain integer ("10") or a range
// string ("8-12").
type Reps string

// UnmarshalJSON accepts a JSON number, string, or null.
func (r *Reps) UnmarshalJSON(data []byte) error {
	s, err := numberOrString(data)
	if err != nil {
		return fmt.Errorf("decode reps: %w", err)
	}
	*r = Reps(s)
	return nil
}

// Int returns the count when Reps is a plain integer.
func (r Reps) Int() (int, bool) {
	n, err := strconv.Atoi(string(r))
	if err != nil {
		return 0, false
	}
	return n, true
}

func numberOrString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// Status is the lifecycle state of a routine.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Routine is a dated workout plan owning an ordered list of exercises.
// Routines are created and deleted by the server only.
type Routine struct {
	ID        ID         `json:"id"`
	Date      string     `json:"date"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary,omitempty"`
	Status    Status     `json:"status"`
	Exercises []Exercise `json:"exercises"`
}

// Clone returns a deep copy of the routine.
func (r Routine) Clone() Routine {
	out := r
	if r.Exercises != nil {
		out.Exercises = make([]Exercise, len(r.Exercises))
		for i, ex := range r.Exercises {
			out.Exercises[i] = ex.Clone()
		}
	}
	return out
}

// Exercise is a single entry of a routine.
type Exercise struct {
	ID         ID       `json:"id"`
	Name       string   `json:"name"`
	Sets       int      `json:"sets"`
	Reps       Reps     `json:"reps"`
	Weight     *float64 `json:"weight"`
	MainTarget string   `json:"mainTarget,omitempty"`
	SubTargets []string `json:"subTargets,omitempty"`
	Completed  bool     `json:"completed"`
	OrderIndex int      `json:"orderIndex"`
}

// Clone returns a deep copy of the exercise.
func (e Exercise) Clone() Exercise {
	out := e
	if e.Weight != nil {
		w := *e.Weight
		out.Weight = &w
	}
	if e.SubTargets != nil {
		out.SubTargets = append([]string(nil), e.SubTargets...)
	}
	return out
}

// UnmarshalJSON also accepts the backend's "category" as MainTarget.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	type plain Exercise
	var aux struct {
		plain
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Exercise(aux.plain)
	if e.MainTarget == "" {
		e.MainTarget = aux.Category
	}
	return nil
}

// Patch is a partial update of an exercise. Nil fields are left unchanged.
// ClearWeight sets the weight to null and wins over Weight.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Sets        *int      `json:"sets,omitempty"`
	Reps        *Reps     `json:"reps,omitempty"`
	Weight      *float64  `json:"weight,omitempty"`
	ClearWeight bool      `json:"clearWeight,omitempty"`
	MainTarget  *string   `json:"mainTarget,omitempty"`
	SubTargets  *[]string `json:"subTargets,omitempty"`
	OrderIndex  *int      `json:"orderIndex,omitempty"`
}

// Apply returns a copy of ex with the patch fields applied.
func (p Patch) Apply(ex Exercise) Exercise {
	out := ex.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Sets != nil {
		out.Sets = *p.Sets
	}
	if p.Reps != nil {
		out.Reps = *p.Reps
	}
	if p.Weight != nil {
		w := *p.Weight
		out.Weight = &w
	}
	if p.ClearWeight {
		out.Weight = nil
	}
	if p.MainTarget != nil {
		out.MainTarget = *p.MainTarget
	}
	if p.SubTargets != nil {
		out.SubTargets = append([]string(nil), (*p.SubTargets)...)
	}
	if p.OrderIndex != nil {
		out.OrderIndex = *p.OrderIndex
	}
	return out
}
