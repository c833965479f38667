// internal/handlers/application.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autolend/leadmarket-backend/internal/i18n"
	"github.com/autolend/leadmarket-backend/internal/services"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

// ApplicationHandler is the applicant-facing surface for drafting and
// submitting loan applications.
type ApplicationHandler struct {
	applicationService *services.ApplicationService
}

func NewApplicationHandler(applicationService *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
	}
}

// POST /applications
func (h *ApplicationHandler) CreateDraft(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	var req services.SaveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	app, err := h.applicationService.CreateDraft(applicantID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationCreated),
		"application": app,
	})
}

// PUT /applications/:id
func (h *ApplicationHandler) UpdateDraft(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	var req services.SaveApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	app, err := h.applicationService.UpdateDraft(appID, applicantID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationUpdated),
		"application": app,
	})
}

// POST /applications/:id/submit
func (h *ApplicationHandler) Submit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	app, err := h.applicationService.Submit(appID, applicantID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyApplicationSubmitted),
		"application": app,
	})
}

// GET /applications/:id
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	app, err := h.applicationService.GetApplication(appID, applicantID)
	if err != nil {
		utils.NotFoundResponse(c, "application")
		return
	}

	utils.SuccessResponse(c, gin.H{"application": app})
}

// GET /applications
func (h *ApplicationHandler) ListMyApplications(c *gin.Context) {
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	apps, total, err := h.applicationService.GetApplicantApplications(applicantID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(apps, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /applications/:id/documents
func (h *ApplicationHandler) UploadDocument(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}
	defer file.Close()

	doc, err := h.applicationService.UploadDocument(appID, applicantID, file, header)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyFileUploadSuccess),
		"document": doc,
	})
}

// GET /applications/:id/documents
func (h *ApplicationHandler) GetDocuments(c *gin.Context) {
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}

	// Ownership check before listing
	if _, err := h.applicationService.GetApplication(appID, applicantID); err != nil {
		utils.NotFoundResponse(c, "application")
		return
	}

	docs, err := h.applicationService.GetDocuments(appID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"documents": docs})
}

// GET /applications/:id/documents/:docId/download
func (h *ApplicationHandler) DownloadDocument(c *gin.Context) {
	applicantID, ok := h.applicantID(c)
	if !ok {
		return
	}

	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid application ID", nil)
		return
	}
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid document ID", nil)
		return
	}

	// Ownership check before handing out a URL
	if _, err := h.applicationService.GetApplication(appID, applicantID); err != nil {
		utils.NotFoundResponse(c, "application")
		return
	}

	url, err := h.applicationService.DocumentDownloadURL(docID)
	if err != nil {
		utils.NotFoundResponse(c, "document")
		return
	}

	utils.SuccessResponse(c, gin.H{"download_url": url})
}

func (h *ApplicationHandler) applicantID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	applicantID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return applicantID, true
}
