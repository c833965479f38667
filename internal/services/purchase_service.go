// internal/services/purchase_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

// PurchaseService is the ledger of permanent access grants. Recording is
// idempotent under the at-least-once webhook delivery of the payment
// provider: duplicates are detected transactionally, never double-charged.
type PurchaseService struct {
	store store.Store
}

type RecordPurchaseRequest struct {
	ApplicationID    uuid.UUID        `json:"application_id" validate:"required"`
	PaymentReference string           `json:"payment_reference" validate:"required"`
	Amount           float64          `json:"amount"`
	Tier             models.PriceTier `json:"tier,omitempty"`
	DiscountInfo     map[string]interface{} `json:"discount_info,omitempty"`
}

type RecordPurchaseResult struct {
	Created  bool             `json:"created"`
	Purchase *models.Purchase `json:"purchase"`
}

func NewPurchaseService(st store.Store) *PurchaseService {
	return &PurchaseService{store: st}
}

// RecordPurchase writes the purchase row for a confirmed payment and applies
// its side effects: rival locks are expired (the lead is claimed) and the
// purchasing dealer gets a 24-hour purchase lock if it does not already hold
// one, at no extra fee. A second delivery of the same confirmation returns
// Created=false and changes nothing.
func (s *PurchaseService) RecordPurchase(dealerID uuid.UUID, req *RecordPurchaseRequest) (*RecordPurchaseResult, error) {
	var result *RecordPurchaseResult

	err := withConflictRetry(func() error {
		return s.store.WithApplication(req.ApplicationID, func(tx store.Store) error {
			now := time.Now()

			existing, err := tx.Purchases().ActiveByDealerApp(dealerID, req.ApplicationID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &RecordPurchaseResult{Created: false, Purchase: existing}
				return nil
			}

			purchase := &models.Purchase{
				ApplicationID:    req.ApplicationID,
				DealerID:         dealerID,
				PaymentReference: req.PaymentReference,
				Amount:           req.Amount,
				Tier:             req.Tier,
				DiscountInfo:     models.JSONB(req.DiscountInfo),
				IsActive:         true,
			}
			if err := tx.Purchases().Create(purchase); err != nil {
				return err
			}

			// The lead is claimed: drop it from every other dealer's
			// available view. Both calls are safe to repeat.
			if err := tx.Locks().ExpireOthers(req.ApplicationID, dealerID, now); err != nil {
				return err
			}
			if err := tx.Applications().MarkPermanentlyUnavailable(req.ApplicationID); err != nil {
				return err
			}

			ownLock, err := tx.Locks().ActiveByDealer(req.ApplicationID, dealerID, now)
			if err != nil {
				return err
			}
			if ownLock == nil {
				lock := &models.ApplicationLock{
					ApplicationID:    req.ApplicationID,
					DealerID:         dealerID,
					Kind:             models.LockKindPurchase,
					ExpiresAt:        now.Add(models.LockDuration(models.LockKindPurchase)),
					PaymentReference: req.PaymentReference,
				}
				if err := tx.Locks().Create(lock); err != nil {
					return err
				}
			}

			result = &RecordPurchaseResult{Created: true, Purchase: purchase}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		logrus.WithFields(logrus.Fields{
			"application_id":    req.ApplicationID,
			"dealer_id":         dealerID,
			"payment_reference": req.PaymentReference,
			"amount":            req.Amount,
		}).Info("Purchase recorded")
	} else {
		logrus.WithFields(logrus.Fields{
			"application_id":    req.ApplicationID,
			"dealer_id":         dealerID,
			"payment_reference": req.PaymentReference,
		}).Info("Duplicate purchase confirmation ignored")
	}

	return result, nil
}

// IsPurchased reports whether the dealer holds an active purchase of the
// application.
func (s *PurchaseService) IsPurchased(applicationID, dealerID uuid.UUID) (bool, error) {
	purchase, err := s.store.Purchases().ActiveByDealerApp(dealerID, applicationID)
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return purchase != nil, nil
}

// GetDealerPurchases lists the dealer's active purchases, newest first.
func (s *PurchaseService) GetDealerPurchases(dealerID uuid.UUID, limit, offset int) ([]models.Purchase, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	purchases, total, err := s.store.Purchases().ListByDealer(dealerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases: %w", err)
	}
	return purchases, total, nil
}
