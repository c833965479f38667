// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/store"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

type AdminService struct {
	db                  *gorm.DB
	store               store.Store
	pricing             *PricingService
	notificationService *NotificationService
}

type AdminDashboardStats struct {
	TotalUsers             int64   `json:"total_users"`
	ActiveUsers            int64   `json:"active_users"`
	NewUsersThisMonth      int64   `json:"new_users_this_month"`
	TotalApplications      int64   `json:"total_applications"`
	PendingReview          int64   `json:"pending_review"`
	AvailableLeads         int64   `json:"available_leads"`
	ActiveLocks            int64   `json:"active_locks"`
	TotalPurchases         int64   `json:"total_purchases"`
	TotalRevenue           float64 `json:"total_revenue"`
	MonthlyRevenue         float64 `json:"monthly_revenue"`
	UserGrowth             float64 `json:"user_growth"`
	RevenueGrowth          float64 `json:"revenue_growth"`
	PermanentlyUnavailable int64   `json:"permanently_unavailable"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	UserType      *models.UserType   `json:"user_type,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CompanyID     *uuid.UUID         `json:"company_id,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type AdminPurchaseFilter struct {
	utils.PaginationParams
	DealerID      *uuid.UUID `json:"dealer_id,omitempty"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	AmountMin     *float64   `json:"amount_min,omitempty"`
	AmountMax     *float64   `json:"amount_max,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

type SavePricingPolicyRequest struct {
	CompanyID          *uuid.UUID         `json:"company_id,omitempty"`
	StandardPrice      float64            `json:"standard_price" validate:"required,gt=0"`
	DiscountedPrice    float64            `json:"discounted_price" validate:"required,gt=0"`
	AgeDiscountEnabled bool               `json:"age_discount_enabled"`
	AgeDiscountDays    int                `json:"age_discount_days,omitempty" validate:"omitempty,min=0"`
	AgeDiscountPercent float64            `json:"age_discount_percent,omitempty" validate:"omitempty,min=0,max=100"`
	LockFees           map[string]float64 `json:"lock_fees,omitempty"`
}

type DealerActivityRow struct {
	Dealer        models.User `json:"dealer"`
	ActiveLocks   int64       `json:"active_locks"`
	Purchases     int64       `json:"purchases"`
	TotalSpent    float64     `json:"total_spent"`
	LastPurchased *time.Time  `json:"last_purchased,omitempty"`
}

func NewAdminService(db *gorm.DB, st store.Store, pricing *PricingService, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		store:               st,
		pricing:             pricing,
		notificationService: notificationService,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats() (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	// User statistics
	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveUsers)
	s.db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)

	// Application statistics
	s.db.Model(&models.Application{}).Count(&stats.TotalApplications)
	s.db.Model(&models.Application{}).
		Where("status = ?", models.ApplicationStatusSubmitted).
		Count(&stats.PendingReview)
	s.db.Model(&models.Application{}).
		Where("status IN ? AND permanently_unavailable = ?",
			[]models.ApplicationStatus{models.ApplicationStatusSubmitted, models.ApplicationStatusApproved}, false).
		Count(&stats.AvailableLeads)
	s.db.Model(&models.Application{}).
		Where("permanently_unavailable = ?", true).
		Count(&stats.PermanentlyUnavailable)

	// Lock and purchase statistics
	s.db.Model(&models.ApplicationLock{}).Where("expires_at > ?", now).Count(&stats.ActiveLocks)
	s.db.Model(&models.Purchase{}).Where("is_active = ?", true).Count(&stats.TotalPurchases)

	// Revenue statistics
	s.db.Model(&models.Purchase{}).
		Where("is_active = ?", true).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalRevenue)

	s.db.Model(&models.Purchase{}).
		Where("is_active = ? AND created_at >= ?", true, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.MonthlyRevenue)

	// Growth calculations
	var lastMonthUsers int64
	s.db.Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", lastMonthStart, monthStart).
		Count(&lastMonthUsers)

	var lastMonthRevenue float64
	s.db.Model(&models.Purchase{}).
		Where("is_active = ? AND created_at >= ? AND created_at < ?", true, lastMonthStart, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&lastMonthRevenue)

	if lastMonthUsers > 0 {
		stats.UserGrowth = float64(stats.NewUsersThisMonth-lastMonthUsers) / float64(lastMonthUsers) * 100
	}
	if lastMonthRevenue > 0 {
		stats.RevenueGrowth = (stats.MonthlyRevenue - lastMonthRevenue) / lastMonthRevenue * 100
	}

	return stats, nil
}

// User Management
func (s *AdminService) GetUsers(filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{}).Preload("Company")

	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Search != "" {
		searchTerm := "%" + filter.Search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "user_type", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) UpdateUserStatus(userID uuid.UUID, status models.UserStatus, adminID uuid.UUID, reason string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("user not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	// Prevent admins from modifying other admins
	if user.UserType == models.UserTypeAdmin && user.ID != adminID {
		return errors.New("cannot modify admin user status")
	}

	oldStatus := user.Status
	user.Status = status

	if err := s.db.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	// Create audit log
	go s.createAuditLog(adminID, "UPDATE_USER_STATUS", "user", &userID,
		map[string]interface{}{"status": oldStatus},
		map[string]interface{}{"status": status, "reason": reason})

	// Send notification to user
	go s.sendUserStatusNotification(&user, oldStatus, reason)

	return nil
}

// SendNotification delivers an admin-authored notification to a user,
// optionally by email as well.
func (s *AdminService) SendNotification(adminID uuid.UUID, req *NotificationRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("user not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := s.notificationService.SendCustomNotification(req); err != nil {
		return err
	}

	go s.createAuditLog(adminID, "SEND_NOTIFICATION", "user", &req.UserID,
		nil, map[string]interface{}{"type": req.Type, "title": req.Title})

	return nil
}

// Pricing Management

// GetPricingPolicies lists all active policies, global first.
func (s *AdminService) GetPricingPolicies() ([]models.PricingPolicy, error) {
	var policies []models.PricingPolicy
	if err := s.db.Preload("Company").
		Where("is_active = ?", true).
		Order("company_id ASC NULLS FIRST").
		Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pricing policies: %w", err)
	}
	return policies, nil
}

// SavePricingPolicy validates and activates a new pricing policy, global or
// per company. An invalid policy is rejected before anything is written; the
// previous policy for the scope stays in force.
func (s *AdminService) SavePricingPolicy(adminID uuid.UUID, req *SavePricingPolicyRequest) (*models.PricingPolicy, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.CompanyID != nil {
		var company models.Company
		if err := s.db.First(&company, *req.CompanyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New("company not found")
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	lockFees := make(models.JSONB, len(req.LockFees))
	for kind, fee := range req.LockFees {
		if !models.ValidLockKind(models.LockKind(kind)) {
			return nil, fmt.Errorf("%w: unknown lock kind %q in lock fees", ErrInvalidPricingConfig, kind)
		}
		if fee < 0 {
			return nil, fmt.Errorf("%w: lock fee for %q must not be negative", ErrInvalidPricingConfig, kind)
		}
		lockFees[kind] = fee
	}

	policy := &models.PricingPolicy{
		CompanyID:          req.CompanyID,
		StandardPrice:      req.StandardPrice,
		DiscountedPrice:    req.DiscountedPrice,
		AgeDiscountEnabled: req.AgeDiscountEnabled,
		AgeDiscountDays:    req.AgeDiscountDays,
		AgeDiscountPercent: req.AgeDiscountPercent,
		LockFees:           lockFees,
		IsActive:           true,
		UpdatedBy:          adminID,
	}

	if err := s.pricing.ValidatePolicy(policy); err != nil {
		return nil, err
	}

	if err := s.store.Pricing().SavePolicy(policy); err != nil {
		return nil, fmt.Errorf("failed to save pricing policy: %w", err)
	}

	go s.createAuditLog(adminID, "SAVE_PRICING_POLICY", "pricing_policy", &policy.ID, nil,
		map[string]interface{}{
			"company_id":       req.CompanyID,
			"standard_price":   req.StandardPrice,
			"discounted_price": req.DiscountedPrice,
		})

	return policy, nil
}

// Purchase reporting
func (s *AdminService) GetPurchases(filter AdminPurchaseFilter) ([]models.Purchase, int64, error) {
	query := s.db.Model(&models.Purchase{}).Preload("Dealer").Preload("Application")

	if filter.DealerID != nil {
		query = query.Where("dealer_id = ?", *filter.DealerID)
	}
	if filter.ApplicationID != nil {
		query = query.Where("application_id = ?", *filter.ApplicationID)
	}
	if filter.AmountMin != nil {
		query = query.Where("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		query = query.Where("amount <= ?", *filter.AmountMax)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "tier"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var purchases []models.Purchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases: %w", err)
	}

	return purchases, total, nil
}

// GetDealerActivity summarizes per-dealer marketplace engagement.
func (s *AdminService) GetDealerActivity(params utils.PaginationParams) ([]DealerActivityRow, int64, error) {
	query := s.db.Model(&models.User{}).Where("user_type = ?", models.UserTypeDealer)

	if params.Search != "" {
		searchTerm := "%" + params.Search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count dealers: %w", err)
	}

	allowedSortFields := []string{"created_at", "username", "last_login_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var dealers []models.User
	if err := query.Preload("Company").Find(&dealers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch dealers: %w", err)
	}

	now := time.Now()
	rows := make([]DealerActivityRow, 0, len(dealers))
	for _, dealer := range dealers {
		row := DealerActivityRow{Dealer: dealer}

		s.db.Model(&models.ApplicationLock{}).
			Where("dealer_id = ? AND expires_at > ?", dealer.ID, now).
			Count(&row.ActiveLocks)

		s.db.Model(&models.Purchase{}).
			Where("dealer_id = ? AND is_active = ?", dealer.ID, true).
			Count(&row.Purchases)

		s.db.Model(&models.Purchase{}).
			Where("dealer_id = ? AND is_active = ?", dealer.ID, true).
			Select("COALESCE(SUM(amount), 0)").Scan(&row.TotalSpent)

		var last models.Purchase
		if err := s.db.Where("dealer_id = ? AND is_active = ?", dealer.ID, true).
			Order("created_at DESC").First(&last).Error; err == nil {
			rows = append(rows, row)
			rows[len(rows)-1].LastPurchased = &last.CreatedAt
			continue
		}
		rows = append(rows, row)
	}

	return rows, total, nil
}

// Settings Management
func (s *AdminService) GetSettings() (map[string]models.AdminSettings, error) {
	var settings []models.AdminSettings
	if err := s.db.Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}

	settingsMap := make(map[string]models.AdminSettings)
	for _, setting := range settings {
		key := fmt.Sprintf("%s.%s", setting.Category, setting.Key)
		settingsMap[key] = setting
	}

	return settingsMap, nil
}

func (s *AdminService) UpdateSetting(category, key string, value interface{}, dataType string, adminID uuid.UUID) error {
	var setting models.AdminSettings
	err := s.db.Where("category = ? AND key = ?", category, key).First(&setting).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.AdminSettings{
			Category:  category,
			Key:       key,
			Value:     models.JSONB{"value": value},
			DataType:  dataType,
			UpdatedBy: adminID,
		}
		if err := s.db.Create(&setting).Error; err != nil {
			return fmt.Errorf("failed to create setting: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	} else {
		oldValue := setting.Value
		setting.Value = models.JSONB{"value": value}
		setting.DataType = dataType
		setting.UpdatedBy = adminID

		if err := s.db.Save(&setting).Error; err != nil {
			return fmt.Errorf("failed to update setting: %w", err)
		}

		go s.createAuditLog(adminID, "UPDATE_SETTING", "admin_setting", &setting.ID,
			map[string]interface{}{"value": oldValue},
			map[string]interface{}{"value": setting.Value})
	}

	return nil
}

// Analytics and Reporting
func (s *AdminService) GetAnalytics(startDate, endDate time.Time, metrics []string) (map[string]interface{}, error) {
	analytics := make(map[string]interface{})

	for _, metric := range metrics {
		switch metric {
		case "user_registrations":
			var count int64
			s.db.Model(&models.User{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["user_registrations"] = count

		case "application_submissions":
			var count int64
			s.db.Model(&models.Application{}).
				Where("submitted_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["application_submissions"] = count

		case "locks_placed":
			var count int64
			s.db.Model(&models.ApplicationLock{}).
				Where("created_at BETWEEN ? AND ?", startDate, endDate).
				Count(&count)
			analytics["locks_placed"] = count

		case "lead_sales":
			var count int64
			s.db.Model(&models.Purchase{}).
				Where("is_active = ? AND created_at BETWEEN ? AND ?", true, startDate, endDate).
				Count(&count)
			analytics["lead_sales"] = count

		case "revenue":
			var revenue float64
			s.db.Model(&models.Purchase{}).
				Where("is_active = ? AND created_at BETWEEN ? AND ?", true, startDate, endDate).
				Select("COALESCE(SUM(amount), 0)").Scan(&revenue)
			analytics["revenue"] = revenue
		}
	}

	return analytics, nil
}

// GetAuditLogs lists admin audit entries, newest first.
func (s *AdminService) GetAuditLogs(params utils.PaginationParams) ([]models.AuditLog, int64, error) {
	query := s.db.Model(&models.AuditLog{}).Preload("User")

	if params.Search != "" {
		searchTerm := "%" + params.Search + "%"
		query = query.Where("action ILIKE ? OR resource_type ILIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	allowedSortFields := []string{"created_at", "action", "resource_type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}

// Helper methods
func (s *AdminService) createAuditLog(userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, oldValues, newValues map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    models.JSONB(oldValues),
		NewValues:    models.JSONB(newValues),
	}

	s.db.Create(auditLog)
}

func (s *AdminService) sendUserStatusNotification(user *models.User, oldStatus models.UserStatus, reason string) {
	if s.notificationService != nil {
		s.notificationService.SendUserStatusChangeNotification(user, oldStatus, reason)
	}
}
