package sentinel

import "errors"

// Sentinel dependency errors. Stores and clients return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrUnavailable   = errors.New("unavailable")
)
