package domain

import "errors"

var (
	// ErrValidation marks malformed requests rejected before a job exists.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks queries for an id with no record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID marks a job id collision at creation.
	ErrDuplicateID = errors.New("duplicate job id")
	// ErrStoreUnavailable marks an unreachable persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")
)
