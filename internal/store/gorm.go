// internal/store/gorm.go
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autolend/leadmarket-backend/internal/models"
)

// GormStore implements Store on top of a PostgreSQL database. Atomicity of
// check-then-write sequences comes from WithApplication's row lock plus the
// partial unique indexes on locks and purchases as a backstop.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Applications() ApplicationStore { return &gormApplications{db: s.db} }
func (s *GormStore) Locks() LockStore               { return &gormLocks{db: s.db} }
func (s *GormStore) Purchases() PurchaseStore       { return &gormPurchases{db: s.db} }
func (s *GormStore) Pricing() PricingStore          { return &gormPricing{db: s.db} }

func (s *GormStore) WithApplication(applicationID uuid.UUID, fn func(tx Store) error) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&app, "id = ?", applicationID).Error; err != nil {
			return mapError(err)
		}
		return fn(&GormStore{db: tx})
	})
	return mapError(err)
}

// mapError translates driver errors into the store taxonomy. Serialization
// failures, deadlocks and unique violations are all races lost to another
// writer and become ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Code.Name())
		}
	}
	return err
}

type gormApplications struct {
	db *gorm.DB
}

func (s *gormApplications) Get(id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := s.db.First(&app, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &app, nil
}

func (s *gormApplications) List(filter ListFilter) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	query = query.Order("submitted_at DESC NULLS LAST")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, 0, mapError(err)
	}
	return apps, total, nil
}

func (s *gormApplications) Create(app *models.Application) error {
	return mapError(s.db.Create(app).Error)
}

func (s *gormApplications) Save(app *models.Application) error {
	return mapError(s.db.Save(app).Error)
}

func (s *gormApplications) MarkPermanentlyUnavailable(id uuid.UUID) error {
	return mapError(s.db.Model(&models.Application{}).
		Where("id = ?", id).
		Update("permanently_unavailable", true).Error)
}

type gormLocks struct {
	db *gorm.DB
}

func (s *gormLocks) ActiveByApplication(applicationID uuid.UUID, now time.Time) (*models.ApplicationLock, error) {
	var lock models.ApplicationLock
	err := s.db.Where("application_id = ? AND expires_at > ?", applicationID, now).
		Order("expires_at DESC").
		First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &lock, nil
}

func (s *gormLocks) ActiveByDealer(applicationID, dealerID uuid.UUID, now time.Time) (*models.ApplicationLock, error) {
	var lock models.ApplicationLock
	err := s.db.Where("application_id = ? AND dealer_id = ? AND expires_at > ?", applicationID, dealerID, now).
		Order("expires_at DESC").
		First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &lock, nil
}

func (s *gormLocks) HasLapsedLock(applicationID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.ApplicationLock{}).
		Where("application_id = ? AND expires_at <= ?", applicationID, now).
		Count(&count).Error
	if err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

func (s *gormLocks) Create(lock *models.ApplicationLock) error {
	return mapError(s.db.Create(lock).Error)
}

func (s *gormLocks) Save(lock *models.ApplicationLock) error {
	return mapError(s.db.Save(lock).Error)
}

func (s *gormLocks) ExpireOthers(applicationID, dealerID uuid.UUID, now time.Time) error {
	return mapError(s.db.Model(&models.ApplicationLock{}).
		Where("application_id = ? AND dealer_id != ? AND expires_at > ?", applicationID, dealerID, now).
		Update("expires_at", now).Error)
}

type gormPurchases struct {
	db *gorm.DB
}

func (s *gormPurchases) ActiveByDealerApp(dealerID, applicationID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.Where("dealer_id = ? AND application_id = ? AND is_active = ?", dealerID, applicationID, true).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &purchase, nil
}

func (s *gormPurchases) Create(purchase *models.Purchase) error {
	return mapError(s.db.Create(purchase).Error)
}

func (s *gormPurchases) ListByDealer(dealerID uuid.UUID, limit, offset int) ([]models.Purchase, int64, error) {
	query := s.db.Model(&models.Purchase{}).
		Where("dealer_id = ? AND is_active = ?", dealerID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	var purchases []models.Purchase
	err := query.Preload("Application").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&purchases).Error
	if err != nil {
		return nil, 0, mapError(err)
	}
	return purchases, total, nil
}

func (s *gormPurchases) CountByApplication(applicationID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&models.Purchase{}).
		Where("application_id = ? AND is_active = ?", applicationID, true).
		Count(&count).Error
	return count, mapError(err)
}

type gormPricing struct {
	db *gorm.DB
}

func (s *gormPricing) ActivePolicy(companyID *uuid.UUID) (*models.PricingPolicy, error) {
	var policy models.PricingPolicy
	query := s.db.Where("is_active = ?", true)
	if companyID == nil {
		query = query.Where("company_id IS NULL")
	} else {
		query = query.Where("company_id = ?", *companyID)
	}
	if err := query.First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, mapError(err)
	}
	return &policy, nil
}

func (s *gormPricing) SavePolicy(policy *models.PricingPolicy) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		deactivate := tx.Model(&models.PricingPolicy{}).Where("is_active = ?", true)
		if policy.CompanyID == nil {
			deactivate = deactivate.Where("company_id IS NULL")
		} else {
			deactivate = deactivate.Where("company_id = ?", *policy.CompanyID)
		}
		if err := deactivate.Update("is_active", false).Error; err != nil {
			return err
		}
		policy.IsActive = true
		return tx.Create(policy).Error
	})
	return mapError(err)
}
