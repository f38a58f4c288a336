// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Services return *Error values for every expected failure; anything
// else is treated as Internal.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Conflict
	NotFound
	InsufficientStock
	InsufficientFunds
	SessionAlreadyActive
	Unauthenticated
	Forbidden
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	InvalidInput:         "invalid_input",
	Conflict:             "conflict",
	NotFound:             "not_found",
	InsufficientStock:    "insufficient_stock",
	InsufficientFunds:    "insufficient_funds",
	SessionAlreadyActive: "session_already_active",
	Unauthenticated:      "unauthenticated",
	Forbidden:            "forbidden",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case InvalidInput, InsufficientStock, InsufficientFunds, SessionAlreadyActive:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind, keeping it in the chain for logging.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err. Internal failures never
// expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}
