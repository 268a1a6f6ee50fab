// Package common defines shared constants and sentinel errors used across
// the transport, service and repository layers. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. Transports map them to coarse status codes and
	// never echo anything more specific to the caller.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrRateLimited    = errors.New("too many attempts")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (malformed, badly signed, expired or wrong-scope token).
	ErrInvalidToken = errors.New("invalid token")
)
