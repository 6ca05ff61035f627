package usecase

import "errors"

// Sentinel errors form the failure taxonomy surfaced to callers. Services
// wrap them with a human-readable reason so the HTTP layer can distinguish
// "you can't do this" from "this isn't possible right now" from "that input
// doesn't make sense".
var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrFailedPrecondition    = errors.New("failed precondition")
	ErrAlreadyExists         = errors.New("already exists")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
