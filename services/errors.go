package services

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// statuses at the route boundary.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrForbidden    = errors.New("access forbidden")
	ErrUnauthorized = errors.New("invalid credentials")
	ErrValidation   = errors.New("validation failed")
)
