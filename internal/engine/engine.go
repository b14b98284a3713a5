package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/repsync/internal/ledger"
	"github.com/roach88/repsync/internal/metrics"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/state"
	"github.com/roach88/repsync/internal/store"
)

// Remote is the server side of the exercise mutations.
// Implemented by *remote.Client; tests use scripted fakes.
type Remote interface {
	ToggleCompleted(ctx context.Context, routineID, exerciseID state.ID) (state.Exercise, error)
	AddExercise(ctx context.Context, routineID state.ID, draft state.Exercise) (state.Exercise, error)
	UpdateExercise(ctx context.Context, routineID, exerciseID state.ID, ex state.Exercise) (state.Exercise, error)
	DeleteExercise(ctx context.Context, routineID, exerciseID state.ID) error
}

// Journal records settled operations. Implemented by *store.Store.
type Journal interface {
	WriteOperation(ctx context.Context, op store.Operation) (string, error)
}

// IDGenerator generates the unique part of temporary exercise IDs.
// Implemented by UUIDv7Generator and, in tests, testutil.SequentialIDGenerator.
type IDGenerator interface {
	Generate() string
}

// Engine applies optimistic mutations to a state.Store and reconciles them
// with the server.
//
// Thread-safety: all methods are safe for concurrent use. Operations on
// different scopes proceed concurrently; a second operation on a busy scope
// is rejected.
type Engine struct {
	store   *state.Store
	remote  Remote
	ledger  *ledger.Ledger
	clock   *Clock
	ids     IDGenerator
	journal Journal
	metrics *metrics.Metrics
	logger  *slog.Logger

	// mu serializes every store+ledger critical section: capture, begin and
	// optimistic apply, and later reconcile or restore.
	mu sync.Mutex
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithLedger uses l instead of a fresh ledger.
func WithLedger(l *ledger.Ledger) EngineOption {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithClock sets the logical clock used to stamp journal entries.
// Use NewClockAt(lastSeq) to continue an existing journal.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for temporary exercise IDs.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithJournal records every settled operation in j.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithMetrics reports operations to m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine operating on st and calling r.
func New(st *state.Store, r Remote, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  st,
		remote: r,
		ledger: ledger.New(),
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Store returns the entity store the engine mutates.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Ledger returns the pending operation ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Clock returns the journal clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Operation describes one optimistic mutation.
//
// Capture, Apply, Reconcile and Restore run under the engine lock and must
// not block. Call runs without the lock and is the only place that talks to
// the server.
type Operation[T any] struct {
	// Scope is the ledger key; at most one operation per scope is in flight.
	Scope ledger.ScopeKey

	// Capture returns the undo snapshot. A ConcurrentOperationError returned
	// here rejects the operation like a busy scope does.
	Capture func(s *state.Store) (ledger.Snapshot, error)

	// Apply performs the optimistic mutation.
	Apply func(s *state.Store) error

	// Call issues the single remote attempt.
	Call func(ctx context.Context) (T, error)

	// Reconcile writes the server-confirmed value into the store.
	// A non-nil error rolls the operation back.
	Reconcile func(s *state.Store, result T) error

	// Restore puts the snapshot back after a failure.
	Restore func(s *state.Store, snap ledger.Snapshot) error
}

// Execute runs op through the optimistic mutation protocol.
//
// Returns the remote result on success. On failure the store is back to its
// state before the call and the error is one of ConcurrentOperationError,
// state.NotFoundError, or a remote Error.
func Execute[T any](ctx context.Context, e *Engine, op Operation[T]) (T, error) {
	var zero T
	kind := string(op.Scope.Kind)

	tok, snap, err := begin(e, op)
	if err != nil {
		if ledger.IsConcurrentOperation(err) {
			e.logger.Warn("operation rejected",
				scopeAttrs(op.Scope, slog.String("error", err.Error()))...)
			e.metrics.OperationSettled(kind, string(store.OutcomeRejected))
			e.record(ctx, op.Scope, store.OutcomeRejected, snap, nil, err)
		}
		return zero, err
	}

	e.metrics.OperationStarted(kind)
	defer e.metrics.OperationFinished(kind)

	settled := false
	defer func() {
		if !settled {
			e.rollback(op.Scope, tok, op.Restore)
			e.metrics.OperationSettled(kind, string(store.OutcomeRolledBack))
		}
	}()

	start := time.Now()
	result, err := op.Call(ctx)
	e.metrics.ObserveRemote(kind, time.Since(start))

	if err != nil {
		err = remote.Wrap(kind+" exercise", err)
	} else if err = commit(e, op, tok, result); err == nil {
		settled = true
		e.logger.Info("operation committed", scopeAttrs(op.Scope)...)
		e.metrics.OperationSettled(kind, string(store.OutcomeCommitted))
		e.record(ctx, op.Scope, store.OutcomeCommitted, snap, journalResult(result), nil)
		return result, nil
	}

	settled = true
	e.rollback(op.Scope, tok, op.Restore)
	e.logger.Warn("operation rolled back",
		scopeAttrs(op.Scope, slog.String("error", err.Error()))...)
	e.metrics.OperationSettled(kind, string(store.OutcomeRolledBack))
	e.record(ctx, op.Scope, store.OutcomeRolledBack, snap, nil, err)
	return zero, err
}

// begin captures the snapshot, opens the ledger entry and applies the
// optimistic mutation as one critical section.
func begin[T any](e *Engine, op Operation[T]) (ledger.Token, ledger.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := op.Capture(e.store)
	if err != nil {
		return ledger.Token{}, ledger.Snapshot{}, err
	}

	tok, err := e.ledger.Begin(op.Scope, snap)
	if err != nil {
		return ledger.Token{}, snap, err
	}

	// A panicking Apply must not leave the scope busy.
	applied := false
	defer func() {
		if applied {
			return
		}
		if _, rbErr := e.ledger.Rollback(tok); rbErr != nil {
			e.logger.Error("failed to settle ledger entry", scopeAttrs(op.Scope, slog.String("error", rbErr.Error()))...)
			return
		}
		if rsErr := op.Restore(e.store, snap); rsErr != nil {
			e.logger.Error("failed to restore snapshot", scopeAttrs(op.Scope, slog.String("error", rsErr.Error()))...)
		}
	}()

	if err := op.Apply(e.store); err != nil {
		applied = true
		if _, rbErr := e.ledger.Rollback(tok); rbErr != nil {
			e.logger.Error("failed to settle ledger entry", scopeAttrs(op.Scope, slog.String("error", rbErr.Error()))...)
		}
		return ledger.Token{}, snap, fmt.Errorf("%s: optimistic apply: %w", op.Scope.Kind, err)
	}

	applied = true
	return tok, snap, nil
}

// commit reconciles the store with result and commits the ledger entry. When
// reconciliation fails the entry is left open for rollback.
func commit[T any](e *Engine, op Operation[T], tok ledger.Token, result T) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := op.Reconcile(e.store, result); err != nil {
		if remote.IsRemote(err) {
			return err
		}
		return fmt.Errorf("%s: reconcile: %w", op.Scope.Kind, err)
	}
	if err := e.ledger.Commit(tok); err != nil {
		e.logger.Error("failed to commit ledger entry", scopeAttrs(op.Scope, slog.String("error", err.Error()))...)
	}
	return nil
}

// rollback settles tok as failed and restores its snapshot.
func (e *Engine) rollback(scope ledger.ScopeKey, tok ledger.Token, restore func(*state.Store, ledger.Snapshot) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.ledger.Rollback(tok)
	if err != nil {
		e.logger.Error("failed to roll back ledger entry", scopeAttrs(scope, slog.String("error", err.Error()))...)
		return
	}
	if err := restore(e.store, snap); err != nil {
		e.logger.Error("failed to restore snapshot", scopeAttrs(scope, slog.String("error", err.Error()))...)
	}
}

// record appends a settled operation to the journal. Journal failures are
// logged; the store outcome stands either way.
func (e *Engine) record(ctx context.Context, scope ledger.ScopeKey, outcome store.Outcome, snap ledger.Snapshot, result any, opErr error) {
	seq := e.clock.Next()
	if e.journal == nil {
		return
	}

	// Settlement must be journaled even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	snapshot, err := store.MarshalPayload(snap.Exercise)
	if err != nil {
		e.logger.Error("failed to encode journal snapshot", scopeAttrs(scope, slog.String("error", err.Error()))...)
		return
	}
	res, err := store.MarshalPayload(result)
	if err != nil {
		e.logger.Error("failed to encode journal result", scopeAttrs(scope, slog.String("error", err.Error()))...)
		return
	}

	op := store.Operation{
		Seq:        seq,
		Kind:       string(scope.Kind),
		RoutineID:  scope.RoutineID.String(),
		ExerciseID: scope.ExerciseID.String(),
		Outcome:    outcome,
		Snapshot:   snapshot,
		Result:     res,
	}
	if opErr != nil {
		op.Error = opErr.Error()
	}

	if _, err := e.journal.WriteOperation(ctx, op); err != nil {
		e.logger.Error("failed to write journal entry",
			scopeAttrs(scope, slog.Int64("seq", seq), slog.String("error", err.Error()))...)
	}
}

// journalResult drops empty results so they are stored as null.
func journalResult[T any](v T) any {
	if _, empty := any(v).(struct{}); empty {
		return nil
	}
	return v
}

func scopeAttrs(scope ledger.ScopeKey, extra ...any) []any {
	attrs := []any{
		slog.String("scope", scope.String()),
		slog.String("kind", string(scope.Kind)),
		slog.String("routine_id", scope.RoutineID.String()),
		slog.String("exercise_id", scope.ExerciseID.String()),
	}
	return append(attrs, extra...)
}
