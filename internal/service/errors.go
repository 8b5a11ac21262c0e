package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Handlers map these to HTTP status codes with errors.Is; the
// more specific errors below wrap one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrEmailExists        = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrRolesNotFound      = fmt.Errorf("%w: no valid roles found", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: refresh session not found", ErrUnauthorized)
)
