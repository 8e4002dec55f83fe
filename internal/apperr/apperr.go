// Package apperr defines the error taxonomy crossed by every core
// operation. Repositories and services translate collaborator failures
// into one of these kinds; no raw storage error crosses the handler
// boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindBadRequest
	KindUnauthorized
)

// Error is a kind-tagged error with an optional wrapped cause.
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

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing referenced entity.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// BadRequest reports an invalid request.
func BadRequest(message string) error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// Unauthorized reports a missing or invalid identity.
func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal wraps a collaborator failure with an opaque message.
func Internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, defaulting to KindInternal for
// untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is tagged NotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is tagged Conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
