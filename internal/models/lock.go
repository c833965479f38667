// internal/models/lock.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationLock is a time-bounded or permanent claim by one dealer on one
// application. Expiry is evaluated lazily at read time; expired rows are
// kept for history and never hard-deleted.
type ApplicationLock struct {
	BaseModel
	ApplicationID    uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index:idx_locks_app_expiry"`
	DealerID         uuid.UUID `json:"dealer_id" gorm:"type:uuid;not null;index"`
	Kind             LockKind  `json:"kind" gorm:"type:varchar(20);not null"`
	ExpiresAt        time.Time `json:"expires_at" gorm:"not null;index:idx_locks_app_expiry"`
	PaymentReference string    `json:"payment_reference,omitempty" gorm:"size:255"`
	FeePaid          float64   `json:"fee_paid" gorm:"type:decimal(10,2);default:0"`

	// Relationships
	Application Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Dealer      User        `json:"dealer,omitempty" gorm:"foreignKey:DealerID"`
}

// Active reports whether the lock is unexpired at t.
func (l *ApplicationLock) Active(t time.Time) bool {
	return l.ExpiresAt.After(t)
}

// permanentLockDuration stands in for "never expires"; expiry comparisons
// stay uniform across all lock kinds.
const permanentLockDuration = 10 * 365 * 24 * time.Hour

// LockDuration maps a lock kind to its lifetime.
func LockDuration(kind LockKind) time.Duration {
	switch kind {
	case LockKindTemporary:
		return time.Hour
	case LockKind24Hours, LockKindPurchase:
		return 24 * time.Hour
	case LockKind1Week:
		return 168 * time.Hour
	case LockKindPermanent:
		return permanentLockDuration
	default:
		return 0
	}
}

// ValidLockKind reports whether kind is one a dealer may request directly.
// purchase_lock rows are only ever created by the purchase ledger.
func ValidLockKind(kind LockKind) bool {
	switch kind {
	case LockKindTemporary, LockKind24Hours, LockKind1Week, LockKindPermanent:
		return true
	default:
		return false
	}
}

// LockInfo is the read-side view of an application's lock state for a
// requesting dealer.
type LockInfo struct {
	IsLocked  bool       `json:"is_locked"`
	IsOwnLock bool       `json:"is_own_lock"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LockType  LockKind   `json:"lock_type,omitempty"`
}
