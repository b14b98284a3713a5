// Package engine implements the repsync reconciliation engine.
//
// The engine runs every optimistic mutation through one code path:
//
//  1. Capture an undo snapshot of the affected exercise.
//  2. Begin a ledger entry for the operation's scope. A scope that already has
//     an operation in flight rejects the new one with
//     ConcurrentOperationError and the store is not touched.
//  3. Apply the optimistic mutation to the store.
//  4. Issue exactly one remote call.
//  5. On success reconcile the store with the server's value and commit; on
//     failure roll back, restore the snapshot and return a remote Error.
//
// Scopes are per kind, so a toggle and an update of one exercise may be in
// flight together. Restores therefore only touch the fields their own
// operation changed: a failed toggle resets the completed flag, a failed
// update reverts the patched fields that still hold its optimistic values.
//
// Steps 1 to 3 run under the engine lock, so no other operation can observe
// or interleave with a half-started one. The lock is released for the remote
// call, which is the only blocking point, and taken again to settle.
//
// CRITICAL PATTERNS:
//
// Every Begin is settled. A deferred rollback settles the ledger entry even
// when the optimistic apply or reconciliation panics, and a cancelled context fails the remote call
// like any other transport error.
//
// Logical Clock:
// Journal entries are stamped with a monotonic seq from Clock.Next(), never
// with wall-clock time.
package engine
