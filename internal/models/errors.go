package models

import "errors"

// ErrorKind classifies failures returned across the ledger core.
type ErrorKind string

const (
	ErrValidation  ErrorKind = "VALIDATION"
	ErrPersistence ErrorKind = "PERSISTENCE"
	ErrImbalance   ErrorKind = "IMBALANCE"
	ErrDuplicate   ErrorKind = "DUPLICATE"
	ErrNotFound    ErrorKind = "NOT_FOUND"
)

// Error is the error type returned by ledger operations.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: ErrPersistence, Message: message, Err: err}
}

func NewImbalanceError(message string) *Error {
	return &Error{Kind: ErrImbalance, Message: message}
}

func NewDuplicateError(message string) *Error {
	return &Error{Kind: ErrDuplicate, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
