package validation

import "errors"

// ErrInvalid is matched by every *Error via errors.Is.
var ErrInvalid = errors.New("invalid input")

// Error reports a rejected input field.
type Error struct {
	Field  string
	Reason string
}

// New creates a validation error for field.
func New(field, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}
