// internal/services/pricing_service.go
package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

// PricingService resolves the price a dealer pays for a given application.
// Policy is re-read from the store on every resolution so admin updates take
// effect immediately.
type PricingService struct {
	store store.Store
}

// PriceAction describes what the dealer is paying for.
type PriceAction struct {
	Kind     models.PaymentKind
	LockKind models.LockKind
}

func PurchaseAction() PriceAction {
	return PriceAction{Kind: models.PaymentKindPurchase}
}

func LockAction(kind models.LockKind) PriceAction {
	return PriceAction{Kind: models.PaymentKindLockExtension, LockKind: kind}
}

func NewPricingService(st store.Store) *PricingService {
	return &PricingService{store: st}
}

// ResolvePrice computes the amount to charge dealerID (whose company is
// companyID, possibly nil) for the given action on the application.
//
// Purchase resolution order: already purchased → free re-download; company
// override replaces the global prices; the lock-lapse discount replaces the
// standard price once a prior lock expired without purchase; the age-based
// discount applies at the configured threshold. Lock-lapse and age discounts
// never compound: the lower resulting price wins.
func (s *PricingService) ResolvePrice(app *models.Application, dealerID uuid.UUID, companyID *uuid.UUID, action PriceAction) (*models.PriceQuote, error) {
	policy, err := s.effectivePolicy(companyID)
	if err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		// Stored config violating the invariant is a defect upstream;
		// refuse to quote from it.
		return nil, err
	}

	if action.Kind == models.PaymentKindLockExtension {
		return s.resolveLockFee(policy, action.LockKind)
	}

	purchased, err := s.store.Purchases().ActiveByDealerApp(dealerID, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check purchase history: %w", err)
	}
	if purchased != nil {
		return &models.PriceQuote{
			Amount: 0,
			Tier:   models.PriceTierFreeRedownload,
			Reason: "already purchased; re-download is free",
		}, nil
	}

	tier := models.PriceTierStandard
	reason := "standard price"
	if policy.CompanyID != nil {
		tier = models.PriceTierCompanyOverride
		reason = "company price override"
	}
	price := policy.StandardPrice

	now := time.Now()
	lockDiscounted := false
	active, err := s.store.Locks().ActiveByApplication(app.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check lock state: %w", err)
	}
	if active == nil {
		lapsed, err := s.store.Locks().HasLapsedLock(app.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to check lock history: %w", err)
		}
		lockDiscounted = lapsed
	}

	ageDiscounted := policy.AgeDiscountEnabled &&
		policy.AgeDiscountDays > 0 &&
		app.AgeDays(now) >= policy.AgeDiscountDays

	switch {
	case lockDiscounted && ageDiscounted:
		// Mutually exclusive by design of the policy: the lower price
		// wins, the discounts never compound.
		agePrice := roundCurrency(price * (1 - policy.AgeDiscountPercent/100))
		if agePrice < policy.DiscountedPrice {
			price = agePrice
			tier = models.PriceTierAgeDiscounted
			reason = fmt.Sprintf("age discount %.0f%% (lead older than %d days)", policy.AgeDiscountPercent, policy.AgeDiscountDays)
		} else {
			price = policy.DiscountedPrice
			tier = models.PriceTierDiscounted
			reason = "previous lock lapsed without purchase"
		}
	case lockDiscounted:
		price = policy.DiscountedPrice
		tier = models.PriceTierDiscounted
		reason = "previous lock lapsed without purchase"
	case ageDiscounted:
		price = roundCurrency(price * (1 - policy.AgeDiscountPercent/100))
		tier = models.PriceTierAgeDiscounted
		reason = fmt.Sprintf("age discount %.0f%% (lead older than %d days)", policy.AgeDiscountPercent, policy.AgeDiscountDays)
	}

	return &models.PriceQuote{
		Amount: roundCurrency(price),
		Tier:   tier,
		Reason: reason,
	}, nil
}

// ValidatePolicy checks the pricing invariants admins must satisfy before a
// policy is written: positive prices and discounted strictly below standard.
func (s *PricingService) ValidatePolicy(policy *models.PricingPolicy) error {
	return validatePolicy(policy)
}

// effectivePolicy loads the global policy and, when the dealer's company has
// an override, replaces prices and lock fees with the override's. Age-based
// discount settings are global only.
func (s *PricingService) effectivePolicy(companyID *uuid.UUID) (*models.PricingPolicy, error) {
	global, err := s.store.Pricing().ActivePolicy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing policy: %w", err)
	}
	if global == nil {
		return nil, ErrPricingNotConfigured
	}
	if companyID == nil {
		return global, nil
	}

	override, err := s.store.Pricing().ActivePolicy(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company pricing policy: %w", err)
	}
	if override == nil {
		return global, nil
	}

	effective := *override
	effective.AgeDiscountEnabled = global.AgeDiscountEnabled
	effective.AgeDiscountDays = global.AgeDiscountDays
	effective.AgeDiscountPercent = global.AgeDiscountPercent
	if effective.LockFees == nil {
		effective.LockFees = global.LockFees
	}
	return &effective, nil
}

func (s *PricingService) resolveLockFee(policy *models.PricingPolicy, kind models.LockKind) (*models.PriceQuote, error) {
	fee, ok := policy.LockFee(kind)
	if !ok {
		return nil, fmt.Errorf("%w: no lock fee configured for %q", ErrInvalidPricingConfig, kind)
	}
	return &models.PriceQuote{
		Amount: roundCurrency(fee),
		Tier:   models.PriceTierStandard,
		Reason: fmt.Sprintf("%s lock fee", kind),
	}, nil
}

func validatePolicy(policy *models.PricingPolicy) error {
	if policy.StandardPrice <= 0 {
		return fmt.Errorf("%w: standard price must be positive", ErrInvalidPricingConfig)
	}
	if policy.DiscountedPrice <= 0 {
		return fmt.Errorf("%w: discounted price must be positive", ErrInvalidPricingConfig)
	}
	if policy.DiscountedPrice >= policy.StandardPrice {
		return fmt.Errorf("%w: discounted price must be below standard price", ErrInvalidPricingConfig)
	}
	if policy.AgeDiscountEnabled {
		if policy.AgeDiscountDays <= 0 {
			return fmt.Errorf("%w: age discount threshold must be positive", ErrInvalidPricingConfig)
		}
		if policy.AgeDiscountPercent <= 0 || policy.AgeDiscountPercent >= 100 {
			return fmt.Errorf("%w: age discount percent must be between 0 and 100", ErrInvalidPricingConfig)
		}
	}
	return nil
}

// roundCurrency rounds to 2 decimals, half up.
func roundCurrency(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}
