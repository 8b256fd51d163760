// Package errs defines the error taxonomy shared by the bridge and its wire
// protocol. The codes are the wire contract: they travel verbatim in error
// responses to the scripting side.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of bridge failure.
type Code string

const (
	// NotFound means a tag does not resolve to a live entity. Recoverable.
	NotFound Code = "NotFoundError"

	// InvalidArgument means malformed wire input: an empty required list, an
	// unknown enum literal, a missing required field.
	InvalidArgument Code = "InvalidArgument"

	// InvalidState means the native engine reported a value outside a closed
	// enum domain. It signals an engine/bridge mismatch, not user error.
	InvalidState Code = "InvalidState"

	// Fatal marks a must-not-happen invariant breach, such as a one-shot
	// callback receiving a signal from the wrong operation family.
	Fatal Code = "FatalError"

	// DuplicateTag means an insert tried to bind an already-bound tag to a
	// different entity. Indicates a tag-generation bug upstream.
	DuplicateTag Code = "DuplicateTagError"

	// Cancelled means the owning peer connection was disposed before a
	// pending negotiation completed.
	Cancelled Code = "CancelledOnDispose"

	CreateOfferFailed         Code = "CreateOfferFailed"
	CreateAnswerFailed        Code = "CreateAnswerFailed"
	SetLocalDescriptionFailed Code = "SetLocalDescriptionFailed"
	SetRemoteDescriptionFailed Code = "SetRemoteDescriptionFailed"
	PeerConnectionFailed      Code = "PeerConnectionError"
)

// Error is a coded bridge error.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Reason
}

// New returns a coded error with a formatted reason.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code carried by err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
