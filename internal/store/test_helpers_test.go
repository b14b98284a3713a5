package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation creates an operation with minimal required fields.
func createTestOperation(seq int64, kind, exerciseID string, outcome Outcome) Operation {
	return Operation{
		Seq:        seq,
		Kind:       kind,
		RoutineID:  "7",
		ExerciseID: exerciseID,
		Outcome:    outcome,
		Snapshot:   json.RawMessage(`{"id":"` + exerciseID + `","completed":false}`),
	}
}
