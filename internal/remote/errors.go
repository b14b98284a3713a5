package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed remote call: either a transport failure (Status 0) or a
// non-2xx response from the server.
//
// Every Error triggers a rollback of the optimistic mutation that preceded
// the call, and its Message is suitable for showing to the user.
type Error struct {
	// Op names the call, e.g. "toggle exercise".
	Op string

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is the server-provided message, or a generic description.
	Message string

	// Err is the underlying transport or decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRemote returns true if err is, or wraps, a remote Error.
func IsRemote(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// StatusCode extracts the HTTP status from a remote Error, or 0.
func StatusCode(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// Wrap converts any failure into a remote Error. Errors that already are
// remote Errors pass through unchanged.
func Wrap(op string, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Op: op, Message: "request failed", Err: err}
}

func statusError(op string, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Op: op, Status: status, Message: message}
}
