package documents

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrFileNotFound = errors.New("file not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrTooLarge     = errors.New("file too large")
	ErrBusy         = errors.New("processing queue is full")
)

// ValidationError reports a rejected upload or request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Reason == reasonTooLarge {
		return ErrTooLarge
	}
	return ErrInvalidInput
}

const reasonTooLarge = "exceeds maximum size"

// ErrInvalidTransition is returned when a state change is not allowed from
// the document's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicate is returned when an id or access token is already taken.
var ErrDuplicate = errors.New("duplicate document")
