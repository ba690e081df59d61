package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a unique constraint was violated.
var ErrConflict = errors.New("repository: conflict")

// ErrInvalidArgument indicates the storage layer rejected a value.
var ErrInvalidArgument = errors.New("repository: invalid argument")
