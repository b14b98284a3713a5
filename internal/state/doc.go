// Package state holds the client-side view of routines and their exercises.
//
// The Store is the single shared mutable resource of the synchronizer. It is a
// keyed collection of routines, each owning an exercise list that is kept
// sorted ascending by OrderIndex at all times. It has no knowledge of the
// network: the reconciliation engine decides when to mutate it and how to
// restore it.
//
// # Invariants
//
//   - Exactly one Exercise per ID within a routine's list
//   - Exercise lists are sorted ascending by OrderIndex after every mutation
//   - Mutating one routine never touches another
//   - Values returned by the Store are deep copies; callers cannot alias
//     internal state
package state
