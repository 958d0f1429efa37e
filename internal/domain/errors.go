package domain

import "errors"

var (
	// ErrInvalidState is returned when a session transition is attempted outside its allowed state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrValidation marks malformed input such as an option index outside [0,3] or a bad question record.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyPool is returned when no valid question is left to build a session from.
	ErrEmptyPool = errors.New("question pool is empty")
	// ErrPersistence wraps failures of the result store (write or query).
	ErrPersistence = errors.New("result persistence failed")
	// ErrSessionNotFound is returned when a quiz session does not exist or has been discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrForbidden is returned when a user acts on another user's session.
	ErrForbidden = errors.New("session belongs to another user")
	// ErrUnauthenticated is returned when no identity is attached to a request.
	ErrUnauthenticated = errors.New("unauthenticated")
)
