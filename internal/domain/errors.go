package domain

import "errors"

// Error kinds shared across stores and services. The HTTP layer maps each
// one to a distinct status, so none of these may be collapsed into another
// on the way up.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrValidation         = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSelfReference      = errors.New("cannot follow yourself")
)
