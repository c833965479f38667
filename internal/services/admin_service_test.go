// internal/services/admin_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolend/leadmarket-backend/internal/store"
)

func TestSavePricingPolicyRejectionKeepsPrior(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	pricing := NewPricingService(st)
	svc := NewAdminService(nil, st, pricing, nil)

	_, err := svc.SavePricingPolicy(uuid.New(), &SavePricingPolicyRequest{
		StandardPrice:   5.00,
		DiscountedPrice: 6.00,
	})
	assert.ErrorIs(t, err, ErrInvalidPricingConfig)

	// The rejected save must not have touched the active policy.
	policy, err := st.Pricing().ActivePolicy(nil)
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, 10.99, policy.StandardPrice)
	assert.Equal(t, 5.99, policy.DiscountedPrice)
}

func TestSavePricingPolicyRejectsBadLockFees(t *testing.T) {
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	pricing := NewPricingService(st)
	svc := NewAdminService(nil, st, pricing, nil)

	_, err := svc.SavePricingPolicy(uuid.New(), &SavePricingPolicyRequest{
		StandardPrice:   10.99,
		DiscountedPrice: 5.99,
		LockFees:        map[string]float64{"forever": 3.00},
	})
	assert.ErrorIs(t, err, ErrInvalidPricingConfig)

	_, err = svc.SavePricingPolicy(uuid.New(), &SavePricingPolicyRequest{
		StandardPrice:   10.99,
		DiscountedPrice: 5.99,
		LockFees:        map[string]float64{"24hours": -2.00},
	})
	assert.ErrorIs(t, err, ErrInvalidPricingConfig)
}
