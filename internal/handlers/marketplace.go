// internal/handlers/marketplace.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/i18n"
	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/services"
	"github.com/autolend/leadmarket-backend/internal/store"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

// MarketplaceHandler is the dealer-facing surface: browsing leads, locking,
// pricing and checkout.
type MarketplaceHandler struct {
	availability *services.AvailabilityService
	locks        *services.LockService
	purchases    *services.PurchaseService
	pricing      *services.PricingService
	payments     *services.PaymentService
}

func NewMarketplaceHandler(
	availability *services.AvailabilityService,
	locks *services.LockService,
	purchases *services.PurchaseService,
	pricing *services.PricingService,
	payments *services.PaymentService,
) *MarketplaceHandler {
	return &MarketplaceHandler{
		availability: availability,
		locks:        locks,
		purchases:    purchases,
		pricing:      pricing,
		payments:     payments,
	}
}

// GET /marketplace/applications
func (h *MarketplaceHandler) ListApplications(c *gin.Context) {
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}
	companyID := utils.GetCompanyIDFromContext(c)
	params := utils.GetPaginationParams(c)

	hide := services.HideFlags{
		LockedByOther: c.Query("hide_locked") == "true",
		Purchased:     c.Query("hide_purchased") == "true",
	}
	if raw := c.Query("hide_older_than_days"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			hide.OlderThanDays = &days
		}
	}

	offset := (params.Page - 1) * params.Limit
	views, total, err := h.availability.Project(dealerID, companyID, hide, params.Limit, offset)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(views, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /marketplace/applications/:id
func (h *MarketplaceHandler) GetApplication(c *gin.Context) {
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}
	companyID := utils.GetCompanyIDFromContext(c)

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	view, err := h.availability.GetView(appID, dealerID, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFoundResponse(c, "application")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, view)
}

// POST /marketplace/applications/:id/lock
func (h *MarketplaceHandler) LockApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	var body struct {
		Kind models.LockKind `json:"kind" validate:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	lock, err := h.locks.Lock(dealerID, &services.LockRequest{
		ApplicationID: appID,
		Kind:          body.Kind,
	})
	if err != nil {
		h.lockErrorResponse(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLockAcquired),
		"lock":    lock,
	})
}

// DELETE /marketplace/applications/:id/lock
func (h *MarketplaceHandler) UnlockApplication(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	if err := h.locks.Unlock(appID, dealerID); err != nil {
		h.lockErrorResponse(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLockReleased),
	})
}

// GET /marketplace/applications/:id/lock
func (h *MarketplaceHandler) GetLockStatus(c *gin.Context) {
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	info, err := h.locks.CheckLock(appID, dealerID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, info)
}

// POST /marketplace/checkout
func (h *MarketplaceHandler) CreateCheckout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}
	companyID := utils.GetCompanyIDFromContext(c)

	var req services.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	response, err := h.payments.CreateCheckoutSession(dealerID, companyID, &req)
	if err != nil {
		if errors.Is(err, services.ErrPricingNotConfigured) || errors.Is(err, services.ErrInvalidPricingConfig) {
			utils.ErrorResponse(c, 422, "PRICING_ERROR", i18n.T(lang, i18n.KeyPricingInvalid), err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, response)
}

// GET /marketplace/downloads
func (h *MarketplaceHandler) GetDownloads(c *gin.Context) {
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	offset := (params.Page - 1) * params.Limit
	purchases, total, err := h.purchases.GetDealerPurchases(dealerID, params.Limit, offset)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(purchases, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /marketplace/applications/:id/quote
func (h *MarketplaceHandler) GetPriceQuote(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	dealerID, ok := h.dealerID(c)
	if !ok {
		return
	}
	companyID := utils.GetCompanyIDFromContext(c)

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	view, err := h.availability.GetView(appID, dealerID, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFoundResponse(c, "application")
			return
		}
		if errors.Is(err, services.ErrPricingNotConfigured) {
			utils.ErrorResponse(c, 422, "PRICING_ERROR", i18n.T(lang, i18n.KeyPricingNotConfigured), nil)
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, view.Price)
}

func (h *MarketplaceHandler) dealerID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	dealerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return dealerID, true
}

func (h *MarketplaceHandler) lockErrorResponse(c *gin.Context, lang string, err error) {
	switch {
	case errors.Is(err, services.ErrAlreadyLockedByOther):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyLockConflict))
	case errors.Is(err, services.ErrDuplicateTemporaryLock):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyLockDuplicate))
	case errors.Is(err, services.ErrNotLockOwner):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyLockNotOwner))
	case errors.Is(err, store.ErrNotFound):
		utils.NotFoundResponse(c, "application")
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
