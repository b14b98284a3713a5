package store

import (
	"context"
	"database/sql"
	"fmt"
)

const selectOperation = `
	SELECT id, seq, kind, routine_id, exercise_id, outcome, error, snapshot, result
	FROM operations
`

// ReadOperations returns the whole journal in seq order.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ReadOperations(ctx context.Context) ([]Operation, error) {
	return s.queryOperations(ctx, selectOperation+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadScope returns the journal entries of one exercise in seq order.
func (s *Store) ReadScope(ctx context.Context, routineID, exerciseID string) ([]Operation, error) {
	return s.queryOperations(ctx, selectOperation+`
		WHERE routine_id = ? AND exercise_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, routineID, exerciseID)
}

// ReadOperation retrieves a single entry by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadOperation(ctx context.Context, id string) (Operation, error) {
	row := s.db.QueryRowContext(ctx, selectOperation+`WHERE id = ?`, id)
	op, err := scanOperation(row)
	if err != nil {
		return Operation{}, err
	}
	return op, nil
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...any) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	return ops, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (Operation, error) {
	var op Operation
	var outcome, snapshot, result string

	err := row.Scan(
		&op.ID, &op.Seq, &op.Kind, &op.RoutineID, &op.ExerciseID,
		&outcome, &op.Error, &snapshot, &result,
	)
	if err == sql.ErrNoRows {
		return Operation{}, err
	}
	if err != nil {
		return Operation{}, fmt.Errorf("scan operation: %w", err)
	}

	op.Outcome = Outcome(outcome)
	op.Snapshot = []byte(snapshot)
	op.Result = []byte(result)
	return op, nil
}
