package ledger

import (
	"errors"
	"fmt"
)

// ConcurrentOperationError is returned by Begin when the scope already has an
// operation in flight.
//
// Callers are expected to have disabled the triggering control while the
// first operation is pending, so this signals a UI race rather than a server
// problem. It is never retried automatically.
type ConcurrentOperationError struct {
	Scope ScopeKey
}

// Error implements the error interface.
func (e *ConcurrentOperationError) Error() string {
	return fmt.Sprintf("operation already in flight for %s", e.Scope)
}

// IsConcurrentOperation returns true if err is, or wraps, a
// ConcurrentOperationError.
func IsConcurrentOperation(err error) bool {
	var ce *ConcurrentOperationError
	return errors.As(err, &ce)
}
