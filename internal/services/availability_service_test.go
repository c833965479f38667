// internal/services/availability_service_test.go
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

func newAvailabilityFixture(t *testing.T) (*store.MemoryStore, *LockService, *PurchaseService, *AvailabilityService) {
	t.Helper()
	st := store.NewMemoryStore()
	seedGlobalPolicy(t, st)
	locks := NewLockService(st)
	purchases := NewPurchaseService(st)
	pricing := NewPricingService(st)
	return st, locks, purchases, NewAvailabilityService(st, locks, purchases, pricing)
}

func TestProjectListsSubmittedLeads(t *testing.T) {
	st, _, _, svc := newAvailabilityFixture(t)
	app := seedApplication(t, st, 1)

	// Drafts never reach the marketplace.
	require.NoError(t, st.Applications().Create(&models.Application{
		Status: models.ApplicationStatusDraft,
	}))

	views, total, err := svc.Project(uuid.New(), nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, views, 1)
	assert.Equal(t, app.ID, views[0].Application.ID)
	assert.Equal(t, 10.99, views[0].Price.Amount)
	assert.False(t, views[0].IsDownloaded)
	assert.False(t, views[0].LockInfo.IsLocked)
}

func TestProjectReflectsLockState(t *testing.T) {
	st, locks, _, svc := newAvailabilityFixture(t)
	app := seedApplication(t, st, 1)
	holder, viewer := uuid.New(), uuid.New()

	_, err := locks.Lock(holder, &LockRequest{ApplicationID: app.ID, Kind: models.LockKind24Hours})
	require.NoError(t, err)

	views, _, err := svc.Project(viewer, nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].LockInfo.IsLocked)
	assert.False(t, views[0].LockInfo.IsOwnLock)

	views, _, err = svc.Project(holder, nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].LockInfo.IsOwnLock)
}

func TestProjectSuppressesClaimedLeads(t *testing.T) {
	st, _, purchases, svc := newAvailabilityFixture(t)
	app := seedApplication(t, st, 1)
	buyer, other := uuid.New(), uuid.New()

	_, err := purchases.RecordPurchase(buyer, &RecordPurchaseRequest{
		ApplicationID:    app.ID,
		PaymentReference: "cs_test_60",
		Amount:           10.99,
	})
	require.NoError(t, err)

	// Gone for everyone else.
	views, _, err := svc.Project(other, nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, views)

	// Still visible to its buyer, marked downloaded and free to re-download.
	views, _, err = svc.Project(buyer, nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsDownloaded)
	assert.Zero(t, views[0].Price.Amount)
	assert.Equal(t, models.PriceTierFreeRedownload, views[0].Price.Tier)
	assert.EqualValues(t, 1, views[0].PurchaseCount)
}

func TestProjectHideFlags(t *testing.T) {
	st, locks, purchases, svc := newAvailabilityFixture(t)
	viewer := uuid.New()

	seedApplication(t, st, 1)
	locked := seedApplication(t, st, 1)
	bought := seedApplication(t, st, 1)
	stale := seedApplication(t, st, 45)

	_, err := locks.Lock(uuid.New(), &LockRequest{ApplicationID: locked.ID, Kind: models.LockKind24Hours})
	require.NoError(t, err)
	_, err = purchases.RecordPurchase(viewer, &RecordPurchaseRequest{
		ApplicationID:    bought.ID,
		PaymentReference: "cs_test_61",
		Amount:           10.99,
	})
	require.NoError(t, err)

	views, _, err := svc.Project(viewer, nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	assert.Len(t, views, 4)

	views, _, err = svc.Project(viewer, nil, HideFlags{LockedByOther: true}, 50, 0)
	require.NoError(t, err)
	assert.Len(t, views, 3)
	for _, v := range views {
		assert.NotEqual(t, locked.ID, v.Application.ID)
	}

	views, _, err = svc.Project(viewer, nil, HideFlags{Purchased: true}, 50, 0)
	require.NoError(t, err)
	assert.Len(t, views, 3)
	for _, v := range views {
		assert.NotEqual(t, bought.ID, v.Application.ID)
	}

	days := 30
	views, _, err = svc.Project(viewer, nil, HideFlags{OlderThanDays: &days}, 50, 0)
	require.NoError(t, err)
	assert.Len(t, views, 3)
	for _, v := range views {
		assert.NotEqual(t, stale.ID, v.Application.ID)
	}
}

func TestProjectOrdersNewestFirst(t *testing.T) {
	st, _, _, svc := newAvailabilityFixture(t)
	older := seedApplication(t, st, 10)
	newer := seedApplication(t, st, 2)

	views, _, err := svc.Project(uuid.New(), nil, HideFlags{}, 50, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].Application.ID)
	assert.Equal(t, older.ID, views[1].Application.ID)
}

func TestGetView(t *testing.T) {
	st, locks, _, svc := newAvailabilityFixture(t)
	app := seedApplication(t, st, 1)
	dealer := uuid.New()

	_, err := locks.Lock(dealer, &LockRequest{ApplicationID: app.ID, Kind: models.LockKindTemporary})
	require.NoError(t, err)

	view, err := svc.GetView(app.ID, dealer, nil)
	require.NoError(t, err)
	assert.True(t, view.LockInfo.IsOwnLock)
	assert.Equal(t, 10.99, view.Price.Amount)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *view.LockInfo.ExpiresAt, 5*time.Second)

	_, err = svc.GetView(uuid.New(), dealer, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
