package economy

import (
	"errors"

	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/mutator"
)

// The service error taxonomy. Transport maps these to HTTP status codes;
// storage and cache error text never crosses this boundary.
var (
	// ErrValidation covers malformed or impossible requests (unknown kind,
	// unknown box type, wrong currency, missing units).
	ErrValidation = errors.New("validation_failed")

	// ErrResourceExhausted covers daily limits: the free spin already used,
	// ad spins at the cap.
	ErrResourceExhausted = errors.New("resource_exhausted")

	// ErrPreconditionFailed is the concurrent-loser outcome of a guarded
	// update: insufficient balance at write time, a unit occupied by a
	// racing request. Retryable after re-reading.
	ErrPreconditionFailed = mutator.ErrPreconditionFailed

	// ErrConfigurationMissing is fatal for the request: an economy-critical
	// table is absent or empty and is never silently defaulted.
	ErrConfigurationMissing = configstore.ErrConfigurationMissing
)
