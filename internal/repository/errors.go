package repository

import "errors"

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("not_found")
	// ErrAlreadyUsed is returned when a single-use row has been consumed.
	ErrAlreadyUsed = errors.New("already_used")
)
