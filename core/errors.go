package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")

	// ErrInvalidPassword is returned when a user aggregate is constructed or
	// mutated with a password that is not already in hashed form
	ErrInvalidPassword = errors.New("password is not in hashed form")

	// ErrNotFound is returned when an update or delete targets a missing row
	ErrNotFound = errors.New("record not found")

	// ErrCancelled is returned when a unit of work is aborted by business logic
	ErrCancelled = errors.New("unit of work cancelled")

	// ErrEmailTaken is returned when registration targets an email that
	// already has an account
	ErrEmailTaken = errors.New("email already registered")
)
