// internal/services/payment_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

func newPaymentFixture(t *testing.T) (*store.MemoryStore, *PaymentService, *PurchaseService, *LockService) {
	t.Helper()
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	pricing := NewPricingService(st)
	locks := NewLockService(st)
	purchases := NewPurchaseService(st)
	svc := NewPaymentService(&config.Config{}, pricing, locks, purchases, nil)
	return st, svc, purchases, locks
}

func paidSession(id string, dealerID uuid.UUID, kind models.PaymentKind, appIDs ...uuid.UUID) *stripe.CheckoutSession {
	ids := ""
	for i, appID := range appIDs {
		if i > 0 {
			ids += ","
		}
		ids += appID.String()
	}
	return &stripe.CheckoutSession{
		ID:            id,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: map[string]string{
			"dealer_id":       dealerID.String(),
			"application_ids": ids,
			"payment_kind":    string(kind),
		},
	}
}

func TestHandleCheckoutCompletedRejectsUnpaid(t *testing.T) {
	st, svc, _, _ := newPaymentFixture(t)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()

	sess := paidSession("cs_test_70", dealer, models.PaymentKindPurchase, app.ID)
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	err := svc.HandleCheckoutCompleted(sess)
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)

	count, err := st.Purchases().CountByApplication(app.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleCheckoutCompletedRecordsPurchases(t *testing.T) {
	st, svc, purchases, _ := newPaymentFixture(t)
	first := seedApplication(t, st, 1)
	second := seedApplication(t, st, 1)
	dealer := uuid.New()

	sess := paidSession("cs_test_71", dealer, models.PaymentKindPurchase, first.ID, second.ID)
	require.NoError(t, svc.HandleCheckoutCompleted(sess))

	for _, appID := range []uuid.UUID{first.ID, second.ID} {
		purchased, err := purchases.IsPurchased(appID, dealer)
		require.NoError(t, err)
		assert.True(t, purchased)

		got, err := st.Applications().Get(appID)
		require.NoError(t, err)
		assert.True(t, got.PermanentlyUnavailable)
	}
}

func TestHandleCheckoutCompletedReplayIsHarmless(t *testing.T) {
	st, svc, _, _ := newPaymentFixture(t)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()

	sess := paidSession("cs_test_72", dealer, models.PaymentKindPurchase, app.ID)
	require.NoError(t, svc.HandleCheckoutCompleted(sess))
	require.NoError(t, svc.HandleCheckoutCompleted(sess))

	count, err := st.Purchases().CountByApplication(app.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestHandleCheckoutCompletedExtendsLocks(t *testing.T) {
	st, svc, _, locks := newPaymentFixture(t)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()

	_, err := locks.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)

	sess := paidSession("cs_test_73", dealer, models.PaymentKindLockExtension, app.ID)
	sess.Metadata["lock_kind"] = string(models.LockKind1Week)
	sess.AmountTotal = 500

	require.NoError(t, svc.HandleCheckoutCompleted(sess))

	lock, err := st.Locks().ActiveByDealer(app.ID, dealer, time.Now())
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, models.LockKind1Week, lock.Kind)
	assert.Equal(t, "cs_test_73", lock.PaymentReference)
	assert.Equal(t, 5.00, lock.FeePaid)
}

func TestHandleCheckoutCompletedBadMetadata(t *testing.T) {
	st, svc, _, _ := newPaymentFixture(t)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()

	sess := paidSession("cs_test_74", dealer, models.PaymentKind("gift"), app.ID)
	assert.Error(t, svc.HandleCheckoutCompleted(sess))

	sess = paidSession("cs_test_75", dealer, models.PaymentKindPurchase)
	assert.Error(t, svc.HandleCheckoutCompleted(sess))

	sess = paidSession("cs_test_76", dealer, models.PaymentKindPurchase, app.ID)
	sess.Metadata["dealer_id"] = "not-a-uuid"
	assert.Error(t, svc.HandleCheckoutCompleted(sess))
}
