// Package store provides SQLite-backed durable storage for the operation
// journal.
//
// The journal is an append-only log of settled optimistic operations:
// committed, rolled back, or rejected before they started. It is never read
// on the hot path; it exists for diagnostics ("why did my toggle flip back?")
// and for the CLI's journal command.
//
// # Ordering
//
//   - Entries are ordered by seq INTEGER (the engine's logical clock), never
//     by wall-clock time
//   - All queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Identity
//
//   - Entry IDs are content-addressed (SHA-256 with domain separation), so
//     writing the same entry twice is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
