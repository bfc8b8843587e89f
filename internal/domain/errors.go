package domain

import "errors"

var (
	// ErrInvalidInput covers negative counts, malformed dates and ID counts outside the rule table.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIDCollision is returned when a record with the same ID is already stored.
	ErrIDCollision = errors.New("record id already exists")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when attempting to register with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAuthorizationDenied is returned when a member asks for another user's records.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrNotFound is returned when a user, record or photo does not exist.
	ErrNotFound = errors.New("not found")
)
