// internal/services/lock_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

const (
	maxConflictRetries = 3
	conflictBackoff    = 50 * time.Millisecond
)

// LockService owns the per-application lock lifecycle: acquisition,
// ownership checks, upgrade, extension and release. Expiry is evaluated
// lazily against wall-clock time; no background reaper is needed for
// correctness.
type LockService struct {
	store store.Store
}

type LockRequest struct {
	ApplicationID    uuid.UUID       `json:"application_id" validate:"required"`
	Kind             models.LockKind `json:"kind" validate:"required"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	FeePaid          float64         `json:"fee_paid,omitempty"`
}

func NewLockService(st store.Store) *LockService {
	return &LockService{store: st}
}

// Lock acquires or upgrades a lock for the dealer. A lock held by another
// dealer rejects the attempt; an own permanent lock makes the call a no-op;
// an own non-permanent lock rejects another non-permanent request (upgrade
// to permanent or pay for an extension instead).
func (s *LockService) Lock(dealerID uuid.UUID, req *LockRequest) (*models.ApplicationLock, error) {
	if !models.ValidLockKind(req.Kind) {
		return nil, fmt.Errorf("invalid lock kind %q", req.Kind)
	}
	return s.acquire(dealerID, req, false)
}

// Extend replaces the dealer's existing lock with a new expiry of the
// requested kind. Only invoked after a confirmed lock-extension payment.
func (s *LockService) Extend(dealerID uuid.UUID, req *LockRequest) (*models.ApplicationLock, error) {
	if !models.ValidLockKind(req.Kind) {
		return nil, fmt.Errorf("invalid lock kind %q", req.Kind)
	}
	return s.acquire(dealerID, req, true)
}

func (s *LockService) acquire(dealerID uuid.UUID, req *LockRequest, extend bool) (*models.ApplicationLock, error) {
	var result *models.ApplicationLock

	err := withConflictRetry(func() error {
		return s.store.WithApplication(req.ApplicationID, func(tx store.Store) error {
			now := time.Now()

			app, err := tx.Applications().Get(req.ApplicationID)
			if err != nil {
				return err
			}

			current, err := tx.Locks().ActiveByApplication(req.ApplicationID, now)
			if err != nil {
				return err
			}

			if current != nil && current.DealerID != dealerID {
				return ErrAlreadyLockedByOther
			}

			if current == nil && app.PermanentlyUnavailable {
				// The lead has been claimed. Only its purchaser keeps
				// access once the purchase lock has run out.
				purchase, err := tx.Purchases().ActiveByDealerApp(dealerID, req.ApplicationID)
				if err != nil {
					return err
				}
				if purchase == nil {
					return ErrAlreadyLockedByOther
				}
			}

			if current != nil {
				switch {
				case current.Kind == models.LockKindPermanent:
					// Exact repeat of a permanent lock: idempotent
					// success, never a second charge.
					result = current
					return nil
				case req.Kind != models.LockKindPermanent && !extend:
					return ErrDuplicateTemporaryLock
				default:
					// Upgrade or paid extension overwrites in place.
					current.Kind = req.Kind
					current.ExpiresAt = now.Add(models.LockDuration(req.Kind))
					if req.PaymentReference != "" {
						current.PaymentReference = req.PaymentReference
						current.FeePaid = req.FeePaid
					}
					if err := tx.Locks().Save(current); err != nil {
						return err
					}
					result = current
				}
			} else {
				lock := &models.ApplicationLock{
					ApplicationID:    req.ApplicationID,
					DealerID:         dealerID,
					Kind:             req.Kind,
					ExpiresAt:        now.Add(models.LockDuration(req.Kind)),
					PaymentReference: req.PaymentReference,
					FeePaid:          req.FeePaid,
				}
				if err := tx.Locks().Create(lock); err != nil {
					return err
				}
				result = lock
			}

			if req.Kind == models.LockKindPermanent {
				if err := tx.Applications().MarkPermanentlyUnavailable(req.ApplicationID); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"application_id": req.ApplicationID,
		"dealer_id":      dealerID,
		"kind":           req.Kind,
	}).Info("Application locked")

	return result, nil
}

// Unlock releases the dealer's own lock by expiring it immediately. The row
// is kept for history. Calling it again once the lock is expired is a no-op.
func (s *LockService) Unlock(applicationID, dealerID uuid.UUID) error {
	return withConflictRetry(func() error {
		return s.store.WithApplication(applicationID, func(tx store.Store) error {
			now := time.Now()

			current, err := tx.Locks().ActiveByApplication(applicationID, now)
			if err != nil {
				return err
			}
			if current == nil {
				return nil
			}
			if current.DealerID != dealerID {
				return ErrNotLockOwner
			}

			current.ExpiresAt = now
			return tx.Locks().Save(current)
		})
	})
}

// CheckLock is a pure read of the application's lock state from the
// perspective of the requesting dealer.
func (s *LockService) CheckLock(applicationID, requestingDealerID uuid.UUID) (*models.LockInfo, error) {
	now := time.Now()
	current, err := s.store.Locks().ActiveByApplication(applicationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock state: %w", err)
	}
	if current == nil {
		return &models.LockInfo{}, nil
	}
	return &models.LockInfo{
		IsLocked:  true,
		IsOwnLock: current.DealerID == requestingDealerID,
		ExpiresAt: &current.ExpiresAt,
		LockType:  current.Kind,
	}, nil
}

// withConflictRetry retries lost transactional races up to maxConflictRetries
// times with linear backoff. All other errors surface immediately.
func withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		time.Sleep(conflictBackoff * time.Duration(attempt+1))
	}
	return fmt.Errorf("retries exhausted: %w", err)
}
