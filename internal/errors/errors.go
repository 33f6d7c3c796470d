package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrNotFound - unknown session or job id (404 at the request surface)
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - malformed request field or unknown enum token in a request
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict - state transition not allowed (terminal job, report already set)
	ErrConflict = errors.New("conflict")

	// ErrConfiguration - invalid policy document or config; fatal at startup
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient - transient error from an external collaborator
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error (generic message + trace id at the request surface)
	ErrInternal = errors.New("internal error")
)
