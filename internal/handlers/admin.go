// internal/handlers/admin.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/i18n"
	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/services"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

type AdminHandler struct {
	adminService       *services.AdminService
	applicationService *services.ApplicationService
}

func NewAdminHandler(adminService *services.AdminService, applicationService *services.ApplicationService) *AdminHandler {
	return &AdminHandler{
		adminService:       adminService,
		applicationService: applicationService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminUserFilter{
		PaginationParams: params,
	}

	if userType := c.Query("user_type"); userType != "" {
		uType := models.UserType(userType)
		filter.UserType = &uType
	}
	if status := c.Query("status"); status != "" {
		uStatus := models.UserStatus(status)
		filter.Status = &uStatus
	}
	if companyID := c.Query("company_id"); companyID != "" {
		if id, err := uuid.Parse(companyID); err == nil {
			filter.CompanyID = &id
		}
	}
	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	users, total, err := h.adminService.GetUsers(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	adminID, ok := h.adminID(c)
	if !ok {
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" validate:"required"`
		Reason string            `json:"reason,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if err := h.adminService.UpdateUserStatus(userID, req.Status, adminID, req.Reason); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
	})
}

// POST /admin/notifications
func (h *AdminHandler) SendNotification(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := h.adminID(c)
	if !ok {
		return
	}

	var req services.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if err := h.adminService.SendNotification(adminID, &req); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
	})
}

// GET /admin/applications
func (h *AdminHandler) GetApplications(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.ApplicationSearchParams{
		PaginationParams: params,
	}
	if status := c.Query("status"); status != "" {
		appStatus := models.ApplicationStatus(status)
		searchParams.Status = &appStatus
	}

	apps, total, err := h.applicationService.SearchApplications(searchParams)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(apps, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/applications/:id/review
func (h *AdminHandler) ReviewApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	adminID, ok := h.adminID(c)
	if !ok {
		return
	}

	var req services.ReviewApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	app, err := h.applicationService.Review(appID, adminID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	key := i18n.KeyApplicationRejected
	if req.Approve {
		key = i18n.KeyApplicationApproved
	}
	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, key),
		"application": app,
	})
}

// GET /admin/pricing
func (h *AdminHandler) GetPricingPolicies(c *gin.Context) {
	policies, err := h.adminService.GetPricingPolicies()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"policies": policies})
}

// PUT /admin/pricing
func (h *AdminHandler) SavePricingPolicy(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := h.adminID(c)
	if !ok {
		return
	}

	var req services.SavePricingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	policy, err := h.adminService.SavePricingPolicy(adminID, &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPricingConfig) {
			utils.ErrorResponse(c, 422, "PRICING_ERROR", i18n.T(lang, i18n.KeyPricingInvalid), err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPricingUpdated),
		"policy":  policy,
	})
}

// GET /admin/purchases
func (h *AdminHandler) GetPurchases(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminPurchaseFilter{
		PaginationParams: params,
	}
	if dealerID := c.Query("dealer_id"); dealerID != "" {
		if id, err := uuid.Parse(dealerID); err == nil {
			filter.DealerID = &id
		}
	}
	if applicationID := c.Query("application_id"); applicationID != "" {
		if id, err := uuid.Parse(applicationID); err == nil {
			filter.ApplicationID = &id
		}
	}
	if createdAfter := c.Query("created_after"); createdAfter != "" {
		if t, err := time.Parse("2006-01-02", createdAfter); err == nil {
			filter.CreatedAfter = &t
		}
	}
	if createdBefore := c.Query("created_before"); createdBefore != "" {
		if t, err := time.Parse("2006-01-02", createdBefore); err == nil {
			filter.CreatedBefore = &t
		}
	}

	purchases, total, err := h.adminService.GetPurchases(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(purchases, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/dealers/activity
func (h *AdminHandler) GetDealerActivity(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	rows, total, err := h.adminService.GetDealerActivity(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(rows, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"settings": settings})
}

// PUT /admin/settings
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := h.adminID(c)
	if !ok {
		return
	}

	var req struct {
		Category string      `json:"category" validate:"required"`
		Key      string      `json:"key" validate:"required"`
		Value    interface{} `json:"value" validate:"required"`
		DataType string      `json:"data_type" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if err := h.adminService.UpdateSetting(req.Category, req.Key, req.Value, req.DataType, adminID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminSettingsUpdated),
	})
}

// GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, -1, 0)

	if raw := c.Query("start_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			startDate = t
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			endDate = t
		}
	}

	metrics := c.QueryArray("metrics")
	if len(metrics) == 0 {
		metrics = []string{"user_registrations", "application_submissions", "locks_placed", "lead_sales", "revenue"}
	}

	analytics, err := h.adminService.GetAnalytics(startDate, endDate, metrics)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"analytics":  analytics,
		"start_date": startDate,
		"end_date":   endDate,
	})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	logs, total, err := h.adminService.GetAuditLogs(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(logs, total, params)
	utils.PaginatedResponse(c, result)
}

func (h *AdminHandler) adminID(c *gin.Context) (uuid.UUID, bool) {
	adminIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	adminID, err := uuid.Parse(adminIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid admin ID", nil)
		return uuid.Nil, false
	}
	return adminID, true
}
