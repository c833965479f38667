// internal/store/store.go
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict signals a lost race against a concurrent writer
	// (serialization failure, deadlock, unique-constraint violation).
	// Callers may retry the whole operation.
	ErrConflict = errors.New("store conflict")
)

// ListFilter narrows and pages application listings.
type ListFilter struct {
	Statuses []models.ApplicationStatus
	Limit    int
	Offset   int
}

// Store is the durable-state boundary for the marketplace core. The lock
// state machine and purchase ledger are written against this interface so
// they can be exercised with an in-memory double in tests.
type Store interface {
	Applications() ApplicationStore
	Locks() LockStore
	Purchases() PurchaseStore
	Pricing() PricingStore

	// WithApplication runs fn serialized against all other writers of the
	// same application, so check-then-write sequences on its lock and
	// purchase state are atomic. fn must not retain the transactional
	// store beyond its return.
	WithApplication(applicationID uuid.UUID, fn func(tx Store) error) error
}

type ApplicationStore interface {
	Get(id uuid.UUID) (*models.Application, error)
	List(filter ListFilter) ([]models.Application, int64, error)
	Create(app *models.Application) error
	Save(app *models.Application) error

	// MarkPermanentlyUnavailable flags the application as claimed. Safe to
	// call more than once.
	MarkPermanentlyUnavailable(id uuid.UUID) error
}

type LockStore interface {
	// ActiveByApplication returns the unexpired lock on the application,
	// or nil when none exists. Locks by different dealers never stack, so
	// at most one row qualifies.
	ActiveByApplication(applicationID uuid.UUID, now time.Time) (*models.ApplicationLock, error)

	// ActiveByDealer returns the dealer's own unexpired lock on the
	// application, or nil.
	ActiveByDealer(applicationID, dealerID uuid.UUID, now time.Time) (*models.ApplicationLock, error)

	// HasLapsedLock reports whether any lock on the application has
	// expired, which makes the lead eligible for the discounted tier.
	HasLapsedLock(applicationID uuid.UUID, now time.Time) (bool, error)

	Create(lock *models.ApplicationLock) error
	Save(lock *models.ApplicationLock) error

	// ExpireOthers immediately expires all active locks on the application
	// held by dealers other than dealerID. Expiring an already-expired
	// lock is a no-op.
	ExpireOthers(applicationID, dealerID uuid.UUID, now time.Time) error
}

type PurchaseStore interface {
	// ActiveByDealerApp returns the dealer's active purchase of the
	// application, or nil when none exists.
	ActiveByDealerApp(dealerID, applicationID uuid.UUID) (*models.Purchase, error)

	Create(purchase *models.Purchase) error
	ListByDealer(dealerID uuid.UUID, limit, offset int) ([]models.Purchase, int64, error)

	// CountByApplication counts active purchases across all dealers.
	// Informational only; no pricing or lock rule consumes it.
	CountByApplication(applicationID uuid.UUID) (int64, error)
}

type PricingStore interface {
	// ActivePolicy returns the active policy for the company, or nil when
	// the company has no override. A nil companyID requests the global
	// policy.
	ActivePolicy(companyID *uuid.UUID) (*models.PricingPolicy, error)

	// SavePolicy deactivates any previous active policy for the same
	// scope and writes the new one.
	SavePolicy(policy *models.PricingPolicy) error
}
