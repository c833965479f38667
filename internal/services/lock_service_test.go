// internal/services/lock_service_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
)

func TestLockAcquire(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	dealer := uuid.New()

	lock, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)
	assert.Equal(t, models.LockKindTemporary, lock.Kind)
	assert.WithinDuration(t, time.Now().Add(time.Hour), lock.ExpiresAt, 5*time.Second)

	info, err := svc.CheckLock(app.ID, dealer)
	require.NoError(t, err)
	assert.True(t, info.IsLocked)
	assert.True(t, info.IsOwnLock)
	assert.Equal(t, models.LockKindTemporary, info.LockType)
}

func TestLockRejectsWhileHeldByOther(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	first, second := uuid.New(), uuid.New()

	_, err := svc.Lock(first, &LockRequest{ApplicationID: app.ID, Kind: models.LockKind24Hours})
	require.NoError(t, err)

	_, err = svc.Lock(second, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	assert.ErrorIs(t, err, ErrAlreadyLockedByOther)

	info, err := svc.CheckLock(app.ID, second)
	require.NoError(t, err)
	assert.True(t, info.IsLocked)
	assert.False(t, info.IsOwnLock)
}

func TestLockRejectsStackedTemporary(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	dealer := uuid.New()

	_, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)

	_, err = svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	assert.ErrorIs(t, err, ErrDuplicateTemporaryLock)

	_, err = svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKind1Week})
	assert.ErrorIs(t, err, ErrDuplicateTemporaryLock)
}

func TestLockUpgradeToPermanent(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	dealer := uuid.New()

	_, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)

	lock, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindPermanent})
	require.NoError(t, err)
	assert.Equal(t, models.LockKindPermanent, lock.Kind)

	got, err := st.Applications().Get(app.ID)
	require.NoError(t, err)
	assert.True(t, got.PermanentlyUnavailable)
}

func TestPermanentRelockIsNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	dealer := uuid.New()

	first, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindPermanent})
	require.NoError(t, err)

	second, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindPermanent})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestUnlock(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	owner, stranger := uuid.New(), uuid.New()

	_, err := svc.Lock(owner, &LockRequest{ApplicationID: app.ID, Kind: models.LockKind24Hours})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Unlock(app.ID, stranger), ErrNotLockOwner)

	require.NoError(t, svc.Unlock(app.ID, owner))
	info, err := svc.CheckLock(app.ID, owner)
	require.NoError(t, err)
	assert.False(t, info.IsLocked)

	// Releasing an already-released lock stays a no-op, for any caller.
	assert.NoError(t, svc.Unlock(app.ID, owner))
	assert.NoError(t, svc.Unlock(app.ID, stranger))
}

func TestExpiredLockFreesTheLead(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	first, second := uuid.New(), uuid.New()

	expiredLock(t, st, app.ID, first)

	lock, err := svc.Lock(second, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)
	assert.Equal(t, second, lock.DealerID)
}

func TestExtendReplacesExpiry(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)
	dealer := uuid.New()

	_, err := svc.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)

	lock, err := svc.Extend(dealer, &LockRequest{
		ApplicationID:    app.ID,
		Kind:             models.LockKind1Week,
		PaymentReference: "cs_test_ext",
		FeePaid:          5.00,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LockKind1Week, lock.Kind)
	assert.Equal(t, "cs_test_ext", lock.PaymentReference)
	assert.Equal(t, 5.00, lock.FeePaid)
	assert.WithinDuration(t, time.Now().Add(168*time.Hour), lock.ExpiresAt, 5*time.Second)
}

func TestLockRejectsInvalidKind(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)

	_, err := svc.Lock(uuid.New(), &LockRequest{ApplicationID: app.ID, Kind: models.LockKindPurchase})
	assert.Error(t, err)

	_, err = svc.Lock(uuid.New(), &LockRequest{ApplicationID: app.ID, Kind: models.LockKind("forever")})
	assert.Error(t, err)
}

func TestLockUnknownApplication(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewLockService(st)

	_, err := svc.Lock(uuid.New(), &LockRequest{ApplicationID: uuid.New(), Kind: models.LockKindTemporary})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLockConcurrentDealers(t *testing.T) {
	st := store.NewMemoryStore()
	app := seedApplication(t, st, 1)
	svc := NewLockService(st)

	const dealers = 8
	var wg sync.WaitGroup
	errs := make([]error, dealers)
	for i := 0; i < dealers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Lock(uuid.New(), &LockRequest{ApplicationID: app.ID, Kind: models.LockKind24Hours})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyLockedByOther)
	}
	assert.Equal(t, 1, won)
}
