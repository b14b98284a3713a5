// Package ledger tracks in-flight optimistic mutations.
//
// The ledger is the single source of truth for "is this scope currently being
// mutated". Each entry carries the undo snapshot captured before the
// optimistic mutation was applied, so a failed remote call can restore the
// exact prior state.
//
// At most one entry may be in flight per ScopeKey. A second Begin on the same
// scope fails immediately with ConcurrentOperationError; there is no queueing.
// Every successful Begin must be settled by exactly one Commit or Rollback.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/repsync/internal/state"
)

// Kind names the mutation an operation performs.
type Kind string

const (
	KindToggle Kind = "toggle"
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ScopeKey identifies the unit of mutual exclusion: one kind of operation on
// one exercise of one routine.
type ScopeKey struct {
	RoutineID  state.ID
	ExerciseID state.ID
	Kind       Kind
}

// String renders the key as "routine/exercise/kind".
func (k ScopeKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.RoutineID, k.ExerciseID, k.Kind)
}

// Status is the lifecycle state of a pending operation.
type Status int

const (
	StatusInFlight Status = iota + 1
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInFlight:
		return "IN_FLIGHT"
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Snapshot is the pre-operation value of the affected exercise.
// A nil Exercise records that the exercise did not exist (the add case).
type Snapshot struct {
	RoutineID  state.ID
	ExerciseID state.ID
	Exercise   *state.Exercise
}

// Present reports whether the exercise existed before the operation.
func (s Snapshot) Present() bool {
	return s.Exercise != nil
}

// Token is the handle returned by Begin. It must be passed to exactly one of
// Commit or Rollback.
type Token struct {
	scope ScopeKey
	seq   uint64
}

// Scope returns the scope the token was issued for.
func (t Token) Scope() ScopeKey {
	return t.scope
}

// Entry is a read-only view of a pending operation.
type Entry struct {
	Scope    ScopeKey
	Status   Status
	Snapshot Snapshot
}

type entry struct {
	seq      uint64
	status   Status
	snapshot Snapshot
}

// ErrUnknownToken is returned when settling a token that was never issued or
// was already settled.
var ErrUnknownToken = errors.New("ledger: unknown or already settled token")

// Ledger holds pending operations keyed by scope.
//
// Thread-safety: all methods are safe for concurrent use. Begin's check and
// insert happen under one lock, so two goroutines racing on the same scope
// cannot both succeed.
type Ledger struct {
	mu      sync.Mutex
	entries map[ScopeKey]*entry
	seq     uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[ScopeKey]*entry)}
}

// Begin records a new in-flight operation on scope with its undo snapshot.
// Returns ConcurrentOperationError if the scope already has one in flight.
func (l *Ledger) Begin(scope ScopeKey, snapshot Snapshot) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.entries[scope]; busy {
		return Token{}, &ConcurrentOperationError{Scope: scope}
	}

	l.seq++
	l.entries[scope] = &entry{
		seq:      l.seq,
		status:   StatusInFlight,
		snapshot: cloneSnapshot(snapshot),
	}
	return Token{scope: scope, seq: l.seq}, nil
}

// Commit marks the operation SUCCEEDED and discards it with its snapshot.
func (l *Ledger) Commit(tok Token) error {
	_, err := l.settle(tok, StatusSucceeded)
	return err
}

// Rollback marks the operation FAILED, discards it, and returns the captured
// snapshot for the caller to restore.
func (l *Ledger) Rollback(tok Token) (Snapshot, error) {
	e, err := l.settle(tok, StatusFailed)
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot, nil
}

func (l *Ledger) settle(tok Token, status Status) (*entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[tok.scope]
	if !ok || e.seq != tok.seq {
		return nil, fmt.Errorf("settle %s: %w", tok.scope, ErrUnknownToken)
	}
	e.status = status
	delete(l.entries, tok.scope)
	return e, nil
}

// InFlight reports whether scope currently has a pending operation.
func (l *Ledger) InFlight(scope ScopeKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[scope]
	return ok
}

// Len returns the number of pending operations.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Pending lists the pending operations in the order they began.
func (l *Ledger) Pending() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	type seqEntry struct {
		seq uint64
		Entry
	}
	list := make([]seqEntry, 0, len(l.entries))
	for scope, e := range l.entries {
		list = append(list, seqEntry{
			seq:   e.seq,
			Entry: Entry{Scope: scope, Status: e.status, Snapshot: cloneSnapshot(e.snapshot)},
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]Entry, len(list))
	for i, se := range list {
		out[i] = se.Entry
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.Exercise != nil {
		ex := s.Exercise.Clone()
		s.Exercise = &ex
	}
	return s
}
