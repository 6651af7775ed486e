// Package common defines shared constants and sentinel errors used across the
// Ledger core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Connection-level errors.
	ErrInvalidConfig = errors.New("invalid connection config")
	ErrNoConnection  = errors.New("no backend connection resolved")

	// Row-storage errors surfaced by the backend client.
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("uniqueness conflict")
	ErrSchemaMissing = errors.New("schema missing")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoSession    = errors.New("no active session")
)
