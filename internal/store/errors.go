package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a create would violate email uniqueness.
var ErrDuplicateEmail = errors.New("duplicate email")
