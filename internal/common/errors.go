// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors.
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrWrongCredentials   = errors.New("wrong credentials")
	ErrTokenCreation      = errors.New("token creation error")

	// Export errors.
	ErrExportDisabled = errors.New("export disabled")
)
