package conversation

import (
	"errors"
	"fmt"
)

// ErrPatientNotFound is returned by stores when the referenced patient does
// not exist.
var ErrPatientNotFound = errors.New("patient not found")

type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindPatientNotFound Kind = "patient_not_found"
	KindStorage         Kind = "storage"
)

// Error is the single error type returned by the gateway and reader.
type Error struct {
	Kind Kind
	// Field names the offending input for KindInvalidInput.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalid(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Err: errors.New(msg)}
}

// storeError classifies an error coming back from a Store.
func storeError(err error) *Error {
	if errors.Is(err, ErrPatientNotFound) {
		return &Error{Kind: KindPatientNotFound, Err: err}
	}
	return &Error{Kind: KindStorage, Err: err}
}
