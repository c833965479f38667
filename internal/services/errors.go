// internal/services/errors.go
package services

import (
	"errors"

	"github.com/autolend/leadmarket-backend/internal/store"
)

// Marketplace error taxonomy. Handlers map these onto HTTP responses;
// everything except ErrStoreConflict is terminal and surfaced to the caller.
var (
	// ErrAlreadyLockedByOther rejects a lock attempt while another dealer
	// holds an unexpired lock. No charge, no state change.
	ErrAlreadyLockedByOther = errors.New("application is locked by another dealer")

	// ErrDuplicateTemporaryLock rejects stacking a second non-permanent
	// lock by the same dealer; the dealer must upgrade to permanent or
	// pay for an extension instead.
	ErrDuplicateTemporaryLock = errors.New("application already locked; upgrade or extend instead")

	// ErrNotLockOwner rejects unlocking a lock held by a different dealer.
	ErrNotLockOwner = errors.New("lock is held by a different dealer")

	// ErrPricingNotConfigured means no standard price is configured at all.
	ErrPricingNotConfigured = errors.New("no pricing policy configured")

	// ErrInvalidPricingConfig rejects a policy whose prices are
	// non-positive or whose discounted price is not below standard.
	ErrInvalidPricingConfig = errors.New("invalid pricing configuration")

	// ErrPaymentNotConfirmed rejects recording state for a payment the
	// provider has not confirmed.
	ErrPaymentNotConfirmed = errors.New("payment has not been confirmed")

	// ErrStoreConflict is a lost transactional race; the core retries it
	// transparently before surfacing.
	ErrStoreConflict = store.ErrConflict
)
