package state

import (
	"sort"
	"sync"
)

// Store is an in-memory, partitioned collection of routines.
//
// Thread-safety: all methods are safe for concurrent use. Each call locks the
// whole store for its duration, which is fine for the handful of routines a
// client holds at a time.
type Store struct {
	mu       sync.RWMutex
	routines map[ID]*Routine
}

// New creates an empty store.
func New() *Store {
	return &Store{routines: make(map[ID]*Routine)}
}

// PutRoutine inserts or replaces a routine wholesale, typically with data
// fetched from the server. The exercise list is de-duplicated by ID (last
// occurrence wins) and sorted by OrderIndex.
func (s *Store) PutRoutine(r Routine) {
	r = r.Clone()

	seen := make(map[ID]int, len(r.Exercises))
	exercises := make([]Exercise, 0, len(r.Exercises))
	for _, ex := range r.Exercises {
		if i, ok := seen[ex.ID]; ok {
			exercises[i] = ex
			continue
		}
		seen[ex.ID] = len(exercises)
		exercises = append(exercises, ex)
	}
	sort.SliceStable(exercises, func(i, j int) bool {
		return exercises[i].OrderIndex < exercises[j].OrderIndex
	})
	r.Exercises = exercises

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routines[r.ID] = &r
}

// Routine returns a copy of the routine with the given ID.
func (s *Store) Routine(id ID) (Routine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routines[id]
	if !ok {
		return Routine{}, false
	}
	return r.Clone(), true
}

// Routines returns copies of all routines ordered by date, then ID.
func (s *Store) Routines() []Routine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Routine, 0, len(s.routines))
	for _, r := range s.routines {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Exercise returns a copy of one exercise.
// Returns NotFoundError if either the routine or the exercise is missing.
func (s *Store) Exercise(routineID, exerciseID ID) (Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routines[routineID]
	if !ok {
		return Exercise{}, routineNotFound(routineID)
	}
	i := indexOf(r.Exercises, exerciseID)
	if i < 0 {
		return Exercise{}, exerciseNotFound(routineID, exerciseID)
	}
	return r.Exercises[i].Clone(), nil
}

// UpsertExercise inserts ex into the routine at its sorted position, or
// replaces the exercise with the same ID. A replacement whose OrderIndex
// changed is moved to its new sorted position.
func (s *Store) UpsertExercise(routineID ID, ex Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routines[routineID]
	if !ok {
		return routineNotFound(routineID)
	}
	if i := indexOf(r.Exercises, ex.ID); i >= 0 {
		r.Exercises = removeAt(r.Exercises, i)
	}
	r.Exercises = insertSorted(r.Exercises, ex.Clone())
	return nil
}

// ReplaceExercise replaces an existing exercise. Unlike UpsertExercise it
// never inserts: if the exercise is gone (for example removed by a
// concurrent delete) it returns NotFoundError and leaves the list unchanged.
func (s *Store) ReplaceExercise(routineID ID, ex Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routines[routineID]
	if !ok {
		return routineNotFound(routineID)
	}
	i := indexOf(r.Exercises, ex.ID)
	if i < 0 {
		return exerciseNotFound(routineID, ex.ID)
	}
	r.Exercises = insertSorted(removeAt(r.Exercises, i), ex.Clone())
	return nil
}

// RemoveExercise deletes an exercise from the routine.
// Removing an absent exercise is not an error; removed reports whether
// anything was deleted.
func (s *Store) RemoveExercise(routineID, exerciseID ID) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routines[routineID]
	if !ok {
		return false, routineNotFound(routineID)
	}
	i := indexOf(r.Exercises, exerciseID)
	if i < 0 {
		return false, nil
	}
	r.Exercises = removeAt(r.Exercises, i)
	return true, nil
}

// ReplaceExerciseID swaps the exercise identified by oldID for ex, which
// carries its own (usually server-assigned) ID. Used to promote a temporary
// exercise to its confirmed form. If an exercise with ex.ID already exists it
// is replaced, so the list never holds two entries with the same ID.
func (s *Store) ReplaceExerciseID(routineID, oldID ID, ex Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routines[routineID]
	if !ok {
		return routineNotFound(routineID)
	}
	if i := indexOf(r.Exercises, oldID); i >= 0 {
		r.Exercises = removeAt(r.Exercises, i)
	}
	if i := indexOf(r.Exercises, ex.ID); i >= 0 {
		r.Exercises = removeAt(r.Exercises, i)
	}
	r.Exercises = insertSorted(r.Exercises, ex.Clone())
	return nil
}

func indexOf(exercises []Exercise, id ID) int {
	for i := range exercises {
		if exercises[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt(exercises []Exercise, i int) []Exercise {
	out := make([]Exercise, 0, len(exercises)-1)
	out = append(out, exercises[:i]...)
	return append(out, exercises[i+1:]...)
}

// insertSorted places ex after every exercise with OrderIndex <= ex.OrderIndex,
// so equal indices keep insertion order.
func insertSorted(exercises []Exercise, ex Exercise) []Exercise {
	pos := sort.Search(len(exercises), func(i int) bool {
		return exercises[i].OrderIndex > ex.OrderIndex
	})
	out := make([]Exercise, 0, len(exercises)+1)
	out = append(out, exercises[:pos]...)
	out = append(out, ex)
	return append(out, exercises[pos:]...)
}
