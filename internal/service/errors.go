package service

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable class of a rental failure.
type Kind string

const (
	KindAssetNotFound       Kind = "asset_not_found"
	KindAssetUnavailable    Kind = "asset_unavailable"
	KindUserNotFound        Kind = "user_not_found"
	KindUserAlreadyRenting  Kind = "user_already_renting"
	KindInvalidReturnWindow Kind = "invalid_return_window"
	KindRentalNotFound      Kind = "rental_not_found"
	KindCollaboratorFailure Kind = "collaborator_failure"
)

// Error is returned by every engine operation that does not succeed.
// All kinds except KindCollaboratorFailure are terminal business outcomes.
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

// Is matches on Kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Transient reports whether the call may be retried with the same input.
func (e *Error) Transient() bool {
	return e.Kind == KindCollaboratorFailure
}

var (
	ErrAssetNotFound       = &Error{Kind: KindAssetNotFound, Message: "asset does not exist"}
	ErrAssetUnavailable    = &Error{Kind: KindAssetUnavailable, Message: "asset is unavailable"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "user does not exist"}
	ErrUserAlreadyRenting  = &Error{Kind: KindUserAlreadyRenting, Message: "user is already renting an asset"}
	ErrInvalidReturnWindow = &Error{Kind: KindInvalidReturnWindow, Message: "invalid return time"}
	ErrRentalNotFound      = &Error{Kind: KindRentalNotFound, Message: "rental does not exist"}
	ErrCollaborator        = &Error{Kind: KindCollaboratorFailure, Message: "collaborator failure"}
)

// ErrRentalClosed is reported by a second close of the same rental.
var ErrRentalClosed = &Error{Kind: KindRentalNotFound, Message: "rental is already closed"}

func collaboratorFailure(op string, err error) *Error {
	return &Error{Kind: KindCollaboratorFailure, Message: op + " failed", Err: err}
}

// KindOf extracts the failure kind from err, or "" if err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
