package store

import (
	"context"
	"fmt"
)

// WriteOperation appends an operation to the journal and returns its ID.
//
// When op.ID is empty it is computed with OperationID. Uses
// ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same entry is
// silently ignored.
func (s *Store) WriteOperation(ctx context.Context, op Operation) (string, error) {
	snapshot, err := compactPayload(op.Snapshot)
	if err != nil {
		return "", fmt.Errorf("write operation: %w", err)
	}
	result, err := compactPayload(op.Result)
	if err != nil {
		return "", fmt.Errorf("write operation: %w", err)
	}
	op.Snapshot = []byte(snapshot)
	op.Result = []byte(result)

	if op.ID == "" {
		op.ID, err = OperationID(op)
		if err != nil {
			return "", fmt.Errorf("write operation: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations
		(id, seq, kind, routine_id, exercise_id, outcome, error, snapshot, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		op.ID,
		op.Seq,
		op.Kind,
		op.RoutineID,
		op.ExerciseID,
		string(op.Outcome),
		op.Error,
		snapshot,
		result,
	)
	if err != nil {
		return "", fmt.Errorf("write operation: %w", err)
	}

	return op.ID, nil
}
