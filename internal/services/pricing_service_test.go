// internal/services/pricing_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

func seedApplication(t *testing.T, st *store.MemoryStore, submittedDaysAgo int) *models.Application {
	t.Helper()
	submitted := time.Now().Add(-time.Duration(submittedDaysAgo) * 24 * time.Hour)
	app := &models.Application{
		Status:        models.ApplicationStatusSubmitted,
		ApplicantData: models.JSONB{"first_name": "Ana", "last_name": "Morales"},
		VehicleData:   models.JSONB{"make": "Toyota", "model": "Corolla"},
		SubmittedAt:   &submitted,
	}
	require.NoError(t, st.Applications().Create(app))
	return app
}

func seedGlobalPolicy(t *testing.T, st *store.MemoryStore) *models.PricingPolicy {
	t.Helper()
	policy := &models.PricingPolicy{
		StandardPrice:   10.99,
		DiscountedPrice: 5.99,
		LockFees: models.JSONB{
			string(models.LockKindTemporary): 0.0,
			string(models.LockKind24Hours):   2.00,
			string(models.LockKind1Week):     5.00,
			string(models.LockKindPermanent): 10.00,
		},
		UpdatedBy: uuid.New(),
	}
	require.NoError(t, st.Pricing().SavePolicy(policy))
	return policy
}

func seedCompanyPolicy(t *testing.T, st *store.MemoryStore, companyID uuid.UUID, standard, discounted float64) *models.PricingPolicy {
	t.Helper()
	policy := &models.PricingPolicy{
		CompanyID:       &companyID,
		StandardPrice:   standard,
		DiscountedPrice: discounted,
		UpdatedBy:       uuid.New(),
	}
	require.NoError(t, st.Pricing().SavePolicy(policy))
	return policy
}

func expiredLock(t *testing.T, st *store.MemoryStore, appID, dealerID uuid.UUID) {
	t.Helper()
	require.NoError(t, st.Locks().Create(&models.ApplicationLock{
		ApplicationID: appID,
		DealerID:      dealerID,
		Kind:          models.LockKindTemporary,
		ExpiresAt:     time.Now().Add(-time.Minute),
	}))
}

func TestResolvePriceStandard(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	app := seedApplication(t, st, 1)
	svc := NewPricingService(st)

	quote, err := svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 10.99, quote.Amount)
	assert.Equal(t, models.PriceTierStandard, quote.Tier)
}

func TestResolvePriceLapsedLockDiscount(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	app := seedApplication(t, st, 1)
	expiredLock(t, st, app.ID, uuid.New())
	svc := NewPricingService(st)

	quote, err := svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 5.99, quote.Amount)
	assert.Equal(t, models.PriceTierDiscounted, quote.Tier)
}

func TestResolvePriceActiveLockSuppressesLapseDiscount(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	app := seedApplication(t, st, 1)
	other := uuid.New()
	expiredLock(t, st, app.ID, other)
	require.NoError(t, st.Locks().Create(&models.ApplicationLock{
		ApplicationID: app.ID,
		DealerID:      other,
		Kind:          models.LockKind24Hours,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}))
	svc := NewPricingService(st)

	// A live lock on the lead means it has not lapsed back to the pool.
	quote, err := svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 10.99, quote.Amount)
	assert.Equal(t, models.PriceTierStandard, quote.Tier)
}

func TestResolvePriceFreeRedownload(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()
	require.NoError(t, st.Purchases().Create(&models.Purchase{
		ApplicationID:    app.ID,
		DealerID:         dealer,
		PaymentReference: "cs_test_1",
		Amount:           10.99,
		IsActive:         true,
	}))
	svc := NewPricingService(st)

	quote, err := svc.ResolvePrice(app, dealer, nil, PurchaseAction())
	require.NoError(t, err)
	assert.Zero(t, quote.Amount)
	assert.Equal(t, models.PriceTierFreeRedownload, quote.Tier)
}

func TestResolvePriceCompanyOverride(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	companyID := uuid.New()
	seedCompanyPolicy(t, st, companyID, 8.50, 4.25)
	app := seedApplication(t, st, 1)
	svc := NewPricingService(st)

	quote, err := svc.ResolvePrice(app, uuid.New(), &companyID, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 8.50, quote.Amount)
	assert.Equal(t, models.PriceTierCompanyOverride, quote.Tier)

	// A dealer from a company without an override pays the global price.
	otherCompany := uuid.New()
	quote, err = svc.ResolvePrice(app, uuid.New(), &otherCompany, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 10.99, quote.Amount)
}

func TestResolvePriceAgeDiscount(t *testing.T) {
	st := store.NewMemoryStore()
	policy := seedGlobalPolicy(t, st)
	policy.AgeDiscountEnabled = true
	policy.AgeDiscountDays = 30
	policy.AgeDiscountPercent = 25
	require.NoError(t, st.Pricing().SavePolicy(policy))

	svc := NewPricingService(st)

	fresh := seedApplication(t, st, 5)
	quote, err := svc.ResolvePrice(fresh, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 10.99, quote.Amount)

	old := seedApplication(t, st, 31)
	quote, err = svc.ResolvePrice(old, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 8.24, quote.Amount)
	assert.Equal(t, models.PriceTierAgeDiscounted, quote.Tier)
}

func TestResolvePriceAgeVersusLapseLowerWins(t *testing.T) {
	st := store.NewMemoryStore()
	policy := seedGlobalPolicy(t, st)
	policy.AgeDiscountEnabled = true
	policy.AgeDiscountDays = 30
	policy.AgeDiscountPercent = 25
	require.NoError(t, st.Pricing().SavePolicy(policy))
	svc := NewPricingService(st)

	// 25% off 10.99 is 8.24; the lapse price of 5.99 is lower and wins.
	app := seedApplication(t, st, 31)
	expiredLock(t, st, app.ID, uuid.New())
	quote, err := svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 5.99, quote.Amount)
	assert.Equal(t, models.PriceTierDiscounted, quote.Tier)

	// At 50% the age price of 5.50 undercuts the lapse price.
	policy.AgeDiscountPercent = 50
	require.NoError(t, st.Pricing().SavePolicy(policy))
	quote, err = svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	require.NoError(t, err)
	assert.Equal(t, 5.50, quote.Amount)
	assert.Equal(t, models.PriceTierAgeDiscounted, quote.Tier)
}

func TestResolveLockFee(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	app := seedApplication(t, st, 1)
	svc := NewPricingService(st)

	quote, err := svc.ResolvePrice(app, uuid.New(), nil, LockAction(models.LockKind24Hours))
	require.NoError(t, err)
	assert.Equal(t, 2.00, quote.Amount)

	quote, err = svc.ResolvePrice(app, uuid.New(), nil, LockAction(models.LockKindTemporary))
	require.NoError(t, err)
	assert.Zero(t, quote.Amount)
}

func TestResolvePriceNoPolicy(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewPricingService(st)

	_, err := svc.ResolvePrice(app, uuid.New(), nil, PurchaseAction())
	assert.ErrorIs(t, err, ErrPricingNotConfigured)
}

func TestValidatePolicy(t *testing.T) {
	svc := NewPricingService(store.NewMemoryStore())

	valid := &models.PricingPolicy{StandardPrice: 10.99, DiscountedPrice: 5.99}
	assert.NoError(t, svc.ValidatePolicy(valid))

	cases := []struct {
		name   string
		policy models.PricingPolicy
	}{
		{"zero standard", models.PricingPolicy{StandardPrice: 0, DiscountedPrice: 5.99}},
		{"zero discounted", models.PricingPolicy{StandardPrice: 10.99, DiscountedPrice: 0}},
		{"discounted above standard", models.PricingPolicy{StandardPrice: 5.99, DiscountedPrice: 10.99}},
		{"discounted equals standard", models.PricingPolicy{StandardPrice: 5.99, DiscountedPrice: 5.99}},
		{"age discount without threshold", models.PricingPolicy{StandardPrice: 10.99, DiscountedPrice: 5.99, AgeDiscountEnabled: true, AgeDiscountPercent: 25}},
		{"age discount percent too high", models.PricingPolicy{StandardPrice: 10.99, DiscountedPrice: 5.99, AgeDiscountEnabled: true, AgeDiscountDays: 30, AgeDiscountPercent: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.ValidatePolicy(&tc.policy), ErrInvalidPricingConfig)
		})
	}
}
