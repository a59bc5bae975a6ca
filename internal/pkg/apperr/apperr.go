// Package apperr defines the error taxonomy shared by every HTTP entry point.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindConfiguration     Kind = "CONFIGURATION_ERROR"
	KindForbidden         Kind = "FORBIDDEN"
	KindPaymentIncomplete Kind = "PAYMENT_INCOMPLETE"
	KindNotFound          Kind = "NOT_FOUND"
	KindNoOp              Kind = "NO_OP"
	KindReconciliation    Kind = "RECONCILIATION_ERROR"
	KindUpstream          Kind = "UPSTREAM_ERROR"
	KindPaymentDeclined   Kind = "PAYMENT_DECLINED"
	KindPayloadTooLarge   Kind = "PAYLOAD_TOO_LARGE"
	KindQuotaExceeded     Kind = "QUOTA_EXCEEDED"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Error carries a kind, a user-facing message and the underlying cause.
// Message is safe to show to end users; Err is for server-side logs only.
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

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and message so sentinel errors work with errors.Is
// even after being re-wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithCause returns a copy of e carrying err as its cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// PublicMessage returns the user-facing message for err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "Something went wrong. Please try again later."
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput, KindPaymentIncomplete, KindNoOp, KindPaymentDeclined, KindPayloadTooLarge:
		return http.StatusBadRequest
	case KindForbidden, KindQuotaExceeded:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
