package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation for the transport layer.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExpired
	KindUnauthorized
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Machine readable codes returned next to the message.
const (
	CodeVerificationAlreadySent = "VERIFICATION_ALREADY_SENT"
	CodeVerificationResent      = "VERIFICATION_RESENT"
	CodeEmailNotVerified        = "EMAIL_NOT_VERIFIED"
	CodeEmailNotVerifiedExpired = "EMAIL_NOT_VERIFIED_EXPIRED"
	CodeResetAlreadySent        = "RESET_ALREADY_SENT"
)

// Error is a failed operation with a message safe to show to the caller.
// Err holds the underlying cause for logging and is never rendered.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}
