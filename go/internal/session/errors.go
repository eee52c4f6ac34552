package session

import "errors"

var (
	ErrInvalidRole = errors.New("invalid session role")
	// ErrInvalidID is returned for anything that is not exactly four digits.
	ErrInvalidID = errors.New("invalid session id")
	// ErrSessionNotFound is returned when no host document exists for the ID.
	ErrSessionNotFound = errors.New("session not found")
	ErrJoinInProgress  = errors.New("join already in progress")
	ErrLookupFailed    = errors.New("session lookup failed")
)
