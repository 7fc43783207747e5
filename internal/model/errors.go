package model

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (email or phone) is already held by another record.
	ErrDuplicate = errors.New("duplicate identity")
	// ErrConditionFailed is returned when a conditional update matched no record.
	ErrConditionFailed = errors.New("condition failed")
	// ErrPasswordMismatch is returned by a PasswordHasher for a wrong password.
	ErrPasswordMismatch = errors.New("password mismatch")

	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token type mismatch")
)
