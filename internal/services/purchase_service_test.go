// internal/services/purchase_service_test.go
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

func TestRecordPurchase(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	locks := NewLockService(st)
	svc := NewPurchaseService(st)
	buyer, rival := uuid.New(), uuid.New()

	_, err := locks.Lock(rival, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)
	// The rival releases; otherwise the buyer could not even lock. The buyer
	// purchases without holding any lock at all.
	require.NoError(t, locks.Unlock(app.ID, rival))

	result, err := svc.RecordPurchase(buyer, &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_42",
		Amount:           5.99,
		Tier:             models.PriceTierDiscounted,
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, 5.99, result.Purchase.Amount)

	// The lead is claimed for everyone else.
	got, err := st.Applications().Get(app.ID)
	require.NoError(t, err)
	assert.True(t, got.PermanentlyUnavailable)

	// The buyer received a complimentary 24-hour purchase lock.
	info, err := locks.CheckLock(app.ID, buyer)
	require.NoError(t, err)
	assert.True(t, info.IsOwnLock)
	assert.Equal(t, models.LockKindPurchase, info.LockType)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *info.ExpiresAt, 5*time.Second)
}

func TestRecordPurchaseExpiresRivalLocks(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewPurchaseService(st)
	buyer, rival := uuid.New(), uuid.New()

	// A rival lock does not block a purchase; purchasing is how a dealer
	// outbids a lock holder.
	require.NoError(t, st.Locks().Create(&models.ApplicationLock{
		ApplicationID: app.ID,
		DealerID:      rival,
		Kind:          models.LockKind1Week,
		ExpiresAt:     time.Now().Add(168 * time.Hour),
	}))

	result, err := svc.RecordPurchase(buyer, &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_43",
		Amount:           10.99,
		Tier:             models.PriceTierStandard,
	})
	require.NoError(t, err)
	assert.True(t, result.Created)

	rivalLock, err := st.Locks().ActiveByDealer(app.ID, rival, time.Now())
	require.NoError(t, err)
	assert.Nil(t, rivalLock)

	ownLock, err := st.Locks().ActiveByDealer(app.ID, buyer, time.Now())
	require.NoError(t, err)
	require.NotNil(t, ownLock)
	assert.Equal(t, models.LockKindPurchase, ownLock.Kind)
}

func TestRecordPurchaseIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewPurchaseService(st)
	buyer := uuid.New()

	req := &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_44",
		Amount:           10.99,
		Tier:             models.PriceTierStandard,
	}

	first, err := svc.RecordPurchase(buyer, req)
	require.NoError(t, err)
	assert.True(t, first.Created)

	// At-least-once webhook delivery replays the same confirmation.
	second, err := svc.RecordPurchase(buyer, req)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)

	count, err := st.Purchases().CountByApplication(app.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRecordPurchaseKeepsExistingOwnLock(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	locks := NewLockService(st)
	svc := NewPurchaseService(st)
	buyer := uuid.New()

	held, err := locks.Lock(buyer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKind1Week})
	require.NoError(t, err)

	_, err = svc.RecordPurchase(buyer, &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_45",
		Amount:           10.99,
	})
	require.NoError(t, err)

	// The held lock survives untouched; no purchase lock is stacked on top.
	current, err := st.Locks().ActiveByDealer(app.ID, buyer, time.Now())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, held.ID, current.ID)
	assert.Equal(t, models.LockKind1Week, current.Kind)
}

func TestPurchasedLeadStaysAccessibleToBuyer(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	locks := NewLockService(st)
	svc := NewPurchaseService(st)
	buyer, rival := uuid.New(), uuid.New()

	_, err := svc.RecordPurchase(buyer, &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_46",
		Amount:           10.99,
	})
	require.NoError(t, err)

	// Expire the complimentary purchase lock.
	ownLock, err := st.Locks().ActiveByDealer(app.ID, buyer, time.Now())
	require.NoError(t, err)
	ownLock.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, st.Locks().Save(ownLock))

	// The buyer can re-lock a claimed lead; anyone else cannot.
	_, err = locks.Lock(buyer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	assert.NoError(t, err)
	require.NoError(t, locks.Unlock(app.ID, buyer))

	_, err = locks.Lock(rival, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	assert.ErrorIs(t, err, ErrAlreadyLockedByOther)

	purchased, err := svc.IsPurchased(app.ID, buyer)
	require.NoError(t, err)
	assert.True(t, purchased)
}

func TestGetDealerPurchases(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewPurchaseService(st)
	buyer := uuid.New()

	for i := 0; i < 3; i++ {
		app := seedApplication(t, st, 1)
		_, err := svc.RecordPurchase(buyer, &RecordPurchaseRequest{
			ApplicationID:    app.ID,
			PaymentReference: uuid.NewString(),
			Amount:           10.99,
		})
		require.NoError(t, err)
	}

	purchases, total, err := svc.GetDealerPurchases(buyer, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, purchases, 2)
}

func TestRecordPurchaseSharedPaymentReference(t *testing.T) {
	st := store.NewMemoryStore()
	first := seedApplication(t, st, 1)
	second := seedApplication(t, st, 1)
	svc := NewPurchaseService(st)
	buyer := uuid.New()

	// One checkout session can cover several leads; every one of them must
	// be recorded under the shared session reference.
	for _, appID := range []uuid.UUID{first.ID, second.ID} {
		result, err := svc.RecordPurchase(buyer, &RecordPurchaseRequest{
			ApplicationID:    appID,
			PaymentReference: "cs_test_50",
			Amount:           10.99,
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
	}

	for _, appID := range []uuid.UUID{first.ID, second.ID} {
		count, err := st.Purchases().CountByApplication(appID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		purchased, err := svc.IsPurchased(appID, buyer)
		require.NoError(t, err)
		assert.True(t, purchased)
	}
}

func TestPurchaseStoreRejectsDuplicateReferencePerApplication(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)

	require.NoError(t, st.Purchases().Create(&models.Purchase{
		ApplicationID:    app.ID,
		DealerID:         uuid.New(),
		PaymentReference: "cs_test_51",
		IsActive:         true,
	}))

	err := st.Purchases().Create(&models.Purchase{
		ApplicationID:    app.ID,
		DealerID:         uuid.New(),
		PaymentReference: "cs_test_51",
		IsActive:         true,
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}
