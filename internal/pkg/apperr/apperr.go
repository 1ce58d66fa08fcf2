// Package apperr defines the error taxonomy shared by the storefront services.
//
// Services return *Error values so the HTTP layer can map them to a status code
// without inspecting messages. Anything that is not an *Error is Unexpected.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindAuthenticationRequired Kind = "AuthenticationRequired"
	KindInvalidCredential      Kind = "InvalidCredential"
	KindUnauthorized           Kind = "Unauthorized"
	KindUserNotFound           Kind = "UserNotFound"
	KindProductNotFound        Kind = "ProductNotFound"
	KindCategoryNotFound       Kind = "CategoryNotFound"
	KindCartNotFound           Kind = "CartNotFound"
	KindItemNotFound           Kind = "ItemNotFound"
	KindOrderNotFound          Kind = "OrderNotFound"
	KindOutOfStock             Kind = "OutOfStock"
	KindInsufficientStock      Kind = "InsufficientStock"
	KindInvalidStatus          Kind = "InvalidStatus"
	KindInvalidTransition      Kind = "InvalidTransition"
	KindEmptyCart              Kind = "EmptyCart"
	KindValidation             Kind = "ValidationError"
	KindConflict               Kind = "Conflict"
	KindUnexpected             Kind = "Unexpected"
)

// Error is a classified failure with a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrInvalidCredential      = &Error{Kind: KindInvalidCredential}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrProductNotFound        = &Error{Kind: KindProductNotFound}
	ErrCategoryNotFound       = &Error{Kind: KindCategoryNotFound}
	ErrCartNotFound           = &Error{Kind: KindCartNotFound}
	ErrItemNotFound           = &Error{Kind: KindItemNotFound}
	ErrOrderNotFound          = &Error{Kind: KindOrderNotFound}
	ErrOutOfStock             = &Error{Kind: KindOutOfStock}
	ErrInsufficientStock      = &Error{Kind: KindInsufficientStock}
	ErrInvalidStatus          = &Error{Kind: KindInvalidStatus}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrEmptyCart              = &Error{Kind: KindEmptyCart}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrUnexpected             = &Error{Kind: KindUnexpected}
)

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unexpected wraps an infrastructure failure. Already classified errors pass through.
func Unexpected(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf reports the kind of err, Unexpected when it is not classified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// MessageOf returns the client-facing message of a classified error.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "Something went wrong"
}
