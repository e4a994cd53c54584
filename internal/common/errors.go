// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository / store errors.
	ErrorNotFound = errors.New("not found")

	// Ingestion pipeline errors.
	// ErrSourceNotFound means the source object is gone and no metadata
	// record exists to resume from; the notification is dropped.
	ErrSourceNotFound = errors.New("source object not found")
	// ErrAlreadyProcessed signals that the record is already PROCESSED.
	// Idempotency checks collapse it into success.
	ErrAlreadyProcessed = errors.New("already processed")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")
	ErrorEmailTaken   = errors.New("email already in use")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
