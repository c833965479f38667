// internal/store/memory.go
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/models"
)

// MemoryStore is an in-process Store used by the service tests. A single
// mutex stands in for the database's transactional guarantees; WithApplication
// holds it for the whole callback, giving the same serialization the GORM
// store gets from its row lock.
type MemoryStore struct {
	mu        sync.Mutex
	apps      map[uuid.UUID]*models.Application
	locks     map[uuid.UUID]*models.ApplicationLock
	purchases map[uuid.UUID]*models.Purchase
	policies  map[uuid.UUID]*models.PricingPolicy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:      make(map[uuid.UUID]*models.Application),
		locks:     make(map[uuid.UUID]*models.ApplicationLock),
		purchases: make(map[uuid.UUID]*models.Purchase),
		policies:  make(map[uuid.UUID]*models.PricingPolicy),
	}
}

func (s *MemoryStore) Applications() ApplicationStore { return &memApplications{s: s} }
func (s *MemoryStore) Locks() LockStore               { return &memLocks{s: s} }
func (s *MemoryStore) Purchases() PurchaseStore       { return &memPurchases{s: s} }
func (s *MemoryStore) Pricing() PricingStore          { return &memPricing{s: s} }

func (s *MemoryStore) WithApplication(applicationID uuid.UUID, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[applicationID]; !ok {
		return ErrNotFound
	}
	return fn(&txMemoryStore{inner: s})
}

// txMemoryStore is handed to WithApplication callbacks; its accessors skip
// re-locking the mutex the callback already holds.
type txMemoryStore struct {
	inner *MemoryStore
}

func (s *txMemoryStore) Applications() ApplicationStore { return &memApplications{s: s.inner, tx: true} }
func (s *txMemoryStore) Locks() LockStore               { return &memLocks{s: s.inner, tx: true} }
func (s *txMemoryStore) Purchases() PurchaseStore       { return &memPurchases{s: s.inner, tx: true} }
func (s *txMemoryStore) Pricing() PricingStore          { return &memPricing{s: s.inner, tx: true} }

func (s *txMemoryStore) WithApplication(applicationID uuid.UUID, fn func(tx Store) error) error {
	if _, ok := s.inner.apps[applicationID]; !ok {
		return ErrNotFound
	}
	return fn(s)
}

type memApplications struct {
	s  *MemoryStore
	tx bool
}

func (m *memApplications) Get(id uuid.UUID) (*models.Application, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	app, ok := m.s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (m *memApplications) List(filter ListFilter) ([]models.Application, int64, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()

	var apps []models.Application
	for _, app := range m.s.apps {
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if app.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		apps = append(apps, *app)
	}

	sort.Slice(apps, func(i, j int) bool {
		a, b := apps[i].SubmittedAt, apps[j].SubmittedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	total := int64(len(apps))
	if filter.Offset > 0 {
		if filter.Offset >= len(apps) {
			return nil, total, nil
		}
		apps = apps[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(apps) {
		apps = apps[:filter.Limit]
	}
	return apps, total, nil
}

func (m *memApplications) Create(app *models.Application) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	cp := *app
	m.s.apps[app.ID] = &cp
	return nil
}

func (m *memApplications) Save(app *models.Application) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	if _, ok := m.s.apps[app.ID]; !ok {
		return ErrNotFound
	}
	app.UpdatedAt = time.Now()
	cp := *app
	m.s.apps[app.ID] = &cp
	return nil
}

func (m *memApplications) MarkPermanentlyUnavailable(id uuid.UUID) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	app, ok := m.s.apps[id]
	if !ok {
		return ErrNotFound
	}
	app.PermanentlyUnavailable = true
	return nil
}

type memLocks struct {
	s  *MemoryStore
	tx bool
}

func (m *memLocks) ActiveByApplication(applicationID uuid.UUID, now time.Time) (*models.ApplicationLock, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	var latest *models.ApplicationLock
	for _, l := range m.s.locks {
		if l.ApplicationID == applicationID && l.ExpiresAt.After(now) {
			if latest == nil || l.ExpiresAt.After(latest.ExpiresAt) {
				latest = l
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memLocks) ActiveByDealer(applicationID, dealerID uuid.UUID, now time.Time) (*models.ApplicationLock, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	var latest *models.ApplicationLock
	for _, l := range m.s.locks {
		if l.ApplicationID == applicationID && l.DealerID == dealerID && l.ExpiresAt.After(now) {
			if latest == nil || l.ExpiresAt.After(latest.ExpiresAt) {
				latest = l
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memLocks) HasLapsedLock(applicationID uuid.UUID, now time.Time) (bool, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, l := range m.s.locks {
		if l.ApplicationID == applicationID && !l.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLocks) Create(lock *models.ApplicationLock) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}
	lock.CreatedAt = time.Now()
	lock.UpdatedAt = lock.CreatedAt
	cp := *lock
	m.s.locks[lock.ID] = &cp
	return nil
}

func (m *memLocks) Save(lock *models.ApplicationLock) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	if _, ok := m.s.locks[lock.ID]; !ok {
		return ErrNotFound
	}
	lock.UpdatedAt = time.Now()
	cp := *lock
	m.s.locks[lock.ID] = &cp
	return nil
}

func (m *memLocks) ExpireOthers(applicationID, dealerID uuid.UUID, now time.Time) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, l := range m.s.locks {
		if l.ApplicationID == applicationID && l.DealerID != dealerID && l.ExpiresAt.After(now) {
			l.ExpiresAt = now
		}
	}
	return nil
}

type memPurchases struct {
	s  *MemoryStore
	tx bool
}

func (m *memPurchases) ActiveByDealerApp(dealerID, applicationID uuid.UUID) (*models.Purchase, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, p := range m.s.purchases {
		if p.DealerID == dealerID && p.ApplicationID == applicationID && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPurchases) Create(purchase *models.Purchase) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, p := range m.s.purchases {
		if p.DealerID == purchase.DealerID && p.ApplicationID == purchase.ApplicationID && p.IsActive {
			return ErrConflict
		}
		// Mirrors the unique (payment_reference, application_id) index:
		// one checkout session records each application at most once.
		if p.PaymentReference == purchase.PaymentReference && p.ApplicationID == purchase.ApplicationID {
			return ErrConflict
		}
	}
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	purchase.CreatedAt = time.Now()
	purchase.UpdatedAt = purchase.CreatedAt
	cp := *purchase
	m.s.purchases[purchase.ID] = &cp
	return nil
}

func (m *memPurchases) ListByDealer(dealerID uuid.UUID, limit, offset int) ([]models.Purchase, int64, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	var purchases []models.Purchase
	for _, p := range m.s.purchases {
		if p.DealerID == dealerID && p.IsActive {
			purchases = append(purchases, *p)
		}
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].CreatedAt.After(purchases[j].CreatedAt)
	})
	total := int64(len(purchases))
	if offset > 0 {
		if offset >= len(purchases) {
			return nil, total, nil
		}
		purchases = purchases[offset:]
	}
	if limit > 0 && limit < len(purchases) {
		purchases = purchases[:limit]
	}
	return purchases, total, nil
}

func (m *memPurchases) CountByApplication(applicationID uuid.UUID) (int64, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	var count int64
	for _, p := range m.s.purchases {
		if p.ApplicationID == applicationID && p.IsActive {
			count++
		}
	}
	return count, nil
}

type memPricing struct {
	s  *MemoryStore
	tx bool
}

func (m *memPricing) ActivePolicy(companyID *uuid.UUID) (*models.PricingPolicy, error) {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, p := range m.s.policies {
		if !p.IsActive {
			continue
		}
		if companyID == nil && p.CompanyID == nil {
			cp := *p
			return &cp, nil
		}
		if companyID != nil && p.CompanyID != nil && *p.CompanyID == *companyID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPricing) SavePolicy(policy *models.PricingPolicy) error {
	if !m.tx {
		m.s.mu.Lock()
	}
	defer func() {
		if !m.tx {
			m.s.mu.Unlock()
		}
	}()
	for _, p := range m.s.policies {
		if !p.IsActive {
			continue
		}
		sameScope := (policy.CompanyID == nil && p.CompanyID == nil) ||
			(policy.CompanyID != nil && p.CompanyID != nil && *p.CompanyID == *policy.CompanyID)
		if sameScope {
			p.IsActive = false
		}
	}
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	policy.IsActive = true
	policy.CreatedAt = time.Now()
	policy.UpdatedAt = policy.CreatedAt
	cp := *policy
	m.s.policies[policy.ID] = &cp
	return nil
}
