package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrConflict           = errors.New("conflicting purchase already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrTransientStore     = errors.New("persistence layer unavailable")

	// Payment / entitlement errors
	ErrNotConfigured     = errors.New("payment gateway is not configured")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrAmountMismatch    = errors.New("payment amount does not match purchase")
	ErrAlreadyEntitled   = errors.New("user already has access to this content")

	// Identity errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("operation not permitted")
)
