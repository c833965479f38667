// internal/services/availability_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

// AvailabilityService computes the application list a dealer sees. It is a
// pure read-side fold over lock state, the purchase ledger and pricing;
// it performs no writes.
type AvailabilityService struct {
	store     store.Store
	lockSvc   *LockService
	purchases *PurchaseService
	pricing   *PricingService
}

// HideFlags are client-side filters a dealer may request. Filtering never
// reorders surviving rows.
type HideFlags struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
	LockedByOther bool `json:"locked_by_other,omitempty"`
	Purchased     bool `json:"purchased,omitempty"`
}

// ApplicationView is one row of a dealer's marketplace listing.
type ApplicationView struct {
	Application   models.Application `json:"application"`
	IsDownloaded  bool               `json:"is_downloaded"`
	LockInfo      models.LockInfo    `json:"lock_info"`
	Price         models.PriceQuote  `json:"price"`
	PurchaseCount int64              `json:"purchase_count"`
}

func NewAvailabilityService(st store.Store, lockSvc *LockService, purchases *PurchaseService, pricing *PricingService) *AvailabilityService {
	return &AvailabilityService{
		store:     st,
		lockSvc:   lockSvc,
		purchases: purchases,
		pricing:   pricing,
	}
}

// Project builds the dealer's view over submitted and approved applications,
// newest submissions first. Leads permanently claimed by another dealer are
// suppressed; the dealer's own purchases stay visible, marked downloaded.
func (s *AvailabilityService) Project(dealerID uuid.UUID, companyID *uuid.UUID, hide HideFlags, limit, offset int) ([]ApplicationView, int64, error) {
	if limit <= 0 {
		limit = 50
	}

	apps, total, err := s.store.Applications().List(store.ListFilter{
		Statuses: []models.ApplicationStatus{
			models.ApplicationStatusSubmitted,
			models.ApplicationStatusApproved,
		},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}

	now := time.Now()
	views := make([]ApplicationView, 0, len(apps))
	for i := range apps {
		app := &apps[i]

		view, err := s.buildView(app, dealerID, companyID)
		if err != nil {
			return nil, 0, err
		}

		lockedByOther := view.LockInfo.IsLocked && !view.LockInfo.IsOwnLock
		if app.PermanentlyUnavailable && !view.IsDownloaded && !view.LockInfo.IsOwnLock {
			continue
		}
		if hide.LockedByOther && lockedByOther {
			continue
		}
		if hide.Purchased && view.IsDownloaded {
			continue
		}
		if hide.OlderThanDays != nil && app.AgeDays(now) > *hide.OlderThanDays {
			continue
		}

		views = append(views, *view)
	}

	return views, total, nil
}

// GetView builds the detail view of a single application for a dealer.
func (s *AvailabilityService) GetView(applicationID, dealerID uuid.UUID, companyID *uuid.UUID) (*ApplicationView, error) {
	app, err := s.store.Applications().Get(applicationID)
	if err != nil {
		return nil, err
	}
	return s.buildView(app, dealerID, companyID)
}

func (s *AvailabilityService) buildView(app *models.Application, dealerID uuid.UUID, companyID *uuid.UUID) (*ApplicationView, error) {
	downloaded, err := s.purchases.IsPurchased(app.ID, dealerID)
	if err != nil {
		return nil, err
	}

	lockInfo, err := s.lockSvc.CheckLock(app.ID, dealerID)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.ResolvePrice(app, dealerID, companyID, PurchaseAction())
	if err != nil {
		return nil, err
	}

	count, err := s.store.Purchases().CountByApplication(app.ID)
	if err != nil {
		return nil, err
	}

	return &ApplicationView{
		Application:   *app,
		IsDownloaded:  downloaded,
		LockInfo:      *lockInfo,
		Price:         *quote,
		PurchaseCount: count,
	}, nil
}
