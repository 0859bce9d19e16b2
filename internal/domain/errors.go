package domain

import "errors"

// Every operation fails with exactly one of these. They are terminal for the
// attempted operation; nothing is retried by the engine itself.
var (
	// Validation errors — caller-correctable.
	ErrInvalidRateLimit   = errors.New("rate limit must be greater than zero")
	ErrNameTooLong        = errors.New("name exceeds maximum length")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrInvalidKeyIndex    = errors.New("key index must equal current credential count")
	ErrTooManyScopes      = errors.New("too many scopes for a 64-bit mask")
	ErrExpiryInPast       = errors.New("expiry slot must be in the future")
	ErrMaxKeysReached     = errors.New("maximum credentials per project reached")

	// Authorization errors.
	ErrUnauthorized = errors.New("caller is not the record owner")

	// Lifecycle errors.
	ErrKeyNotActive    = errors.New("credential is not active")
	ErrKeyNotSuspended = errors.New("credential is not suspended")
	ErrKeyExpired      = errors.New("credential has expired")

	// Security errors. ErrInvalidKey also advances the brute-force counter.
	ErrInvalidKey        = errors.New("invalid credential: hash mismatch")
	ErrInsufficientScope = errors.New("insufficient scope")

	// Capacity errors.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Structural errors.
	ErrProjectHasKeys      = errors.New("project still has credentials")
	ErrUsageCounterOpen    = errors.New("usage counter must be closed first")
	ErrKeyProjectMismatch  = errors.New("credential does not belong to this project")
	ErrNotFound            = errors.New("record not found")
	ErrRecordExists        = errors.New("record already exists at this address")
)
