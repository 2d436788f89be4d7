// Package apperr defines the error kinds surfaced by the storefront services.
// Stores return plain wrapped errors; services translate them into one of
// these kinds before they reach the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidCredentials
	KindStore
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindStore:
		return "store"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error carries a kind, a client-safe message and an optional cause that is
// only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Not authenticated"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Admin access required"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "Not found"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "Validation error"}
	ErrStore              = &Error{Kind: KindStore, Message: "Internal server error"}
	ErrRateLimited        = &Error{Kind: KindRateLimited, Message: "Too many requests"}
)

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Store wraps a persistence failure. The cause is kept for logging; the
// message never leaks it.
func Store(op string, err error) error {
	return &Error{Kind: KindStore, Message: "Internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that is safe to send to a client.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}
