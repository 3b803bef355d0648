package service

import "errors"

// Error kinds. Every error returned by a service wraps exactly one of these,
// so the transport layer can map it with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrCapacityViolation = errors.New("capacity violation")
	ErrStateViolation    = errors.New("state violation")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNoEffect          = errors.New("operation had no effect")
	ErrMalformedInput    = errors.New("malformed input")
	ErrAuthentication    = errors.New("authentication failed")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
)

// kindError carries a user-facing message and unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrUserNotFound         = newError(ErrNotFound, "user not found")
	ErrOwnerNotFound        = newError(ErrNotFound, "room owner not found")
	ErrRoomNotFound         = newError(ErrNotFound, "room not found")
	ErrRoomFull             = newError(ErrCapacityViolation, "room is full")
	ErrRoomEmpty            = newError(ErrStateViolation, "room has no occupants to leave")
	ErrRoomJoin             = newError(ErrNoEffect, "failed to join room")
	ErrRoomLeave            = newError(ErrNoEffect, "failed to leave room")
	ErrRoomDelete           = newError(ErrNoEffect, "failed to delete room")
	ErrNotRoomOwner         = newError(ErrUnauthorized, "only the room owner may do this")
	ErrMalformedDuration    = newError(ErrMalformedInput, "totalHours must be formatted as H:M:S")
	ErrInvalidRoom          = newError(ErrMalformedInput, "invalid room: title and a capacity of at least 1 are required")
	ErrInvalidCheckout      = newError(ErrMalformedInput, "checkOut must not be before checkIn")
	ErrAuthenticationFailed = newError(ErrAuthentication, "authentication failed")
	ErrRegistrationFailed   = newError(ErrConflict, "registration failed: username or email already exists")
	ErrInternalServer       = newError(ErrInternal, "internal server error")
)
