// internal/services/application_service.go
package services

import (
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

// ApplicationService owns the applicant-facing lifecycle of a loan
// application: multi-step draft editing, submission and admin review. Once
// submitted, an application becomes a lead visible to dealers; the
// marketplace services take over from there.
type ApplicationService struct {
	db             *gorm.DB
	storageService *StorageService
	notifications  *NotificationService
}

type SaveApplicationRequest struct {
	ApplicantData map[string]interface{} `json:"applicant_data,omitempty"`
	VehicleData   map[string]interface{} `json:"vehicle_data,omitempty"`
	CurrentStep   int                    `json:"current_step,omitempty" validate:"omitempty,min=1,max=10"`
}

type ReviewApplicationRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ApplicationSearchParams struct {
	utils.PaginationParams
	Status      *models.ApplicationStatus `json:"status,omitempty"`
	ApplicantID *uuid.UUID                `json:"applicant_id,omitempty"`
}

func NewApplicationService(db *gorm.DB, storageService *StorageService, notifications *NotificationService) *ApplicationService {
	return &ApplicationService{
		db:             db,
		storageService: storageService,
		notifications:  notifications,
	}
}

// CreateDraft opens a new draft application for the applicant.
func (s *ApplicationService) CreateDraft(applicantID uuid.UUID, req *SaveApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var applicant models.User
	if err := s.db.First(&applicant, applicantID).Error; err != nil {
		return nil, fmt.Errorf("applicant not found: %w", err)
	}
	if applicant.Status != models.UserStatusActive {
		return nil, errors.New("applicant account is not active")
	}

	step := req.CurrentStep
	if step < 1 {
		step = 1
	}

	app := &models.Application{
		ApplicantID:   &applicantID,
		Status:        models.ApplicationStatusDraft,
		ApplicantData: models.JSONB(req.ApplicantData),
		VehicleData:   models.JSONB(req.VehicleData),
		CurrentStep:   step,
	}

	if err := s.db.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return app, nil
}

// UpdateDraft merges new step data into the applicant's draft. Only drafts
// accept edits; a submitted application is immutable to the applicant.
func (s *ApplicationService) UpdateDraft(id, applicantID uuid.UUID, req *SaveApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	app, err := s.getOwned(id, applicantID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusDraft {
		return nil, errors.New("only draft applications can be edited")
	}

	if req.ApplicantData != nil {
		app.ApplicantData = mergeJSONB(app.ApplicantData, req.ApplicantData)
	}
	if req.VehicleData != nil {
		app.VehicleData = mergeJSONB(app.VehicleData, req.VehicleData)
	}
	if req.CurrentStep > app.CurrentStep {
		app.CurrentStep = req.CurrentStep
	}

	if err := s.db.Save(app).Error; err != nil {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	return app, nil
}

// Submit transitions the applicant's draft into the marketplace. The
// submission timestamp starts the age-based discount clock.
func (s *ApplicationService) Submit(id, applicantID uuid.UUID) (*models.Application, error) {
	app, err := s.getOwned(id, applicantID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusDraft {
		return nil, errors.New("application has already been submitted")
	}
	if len(app.ApplicantData) == 0 || len(app.VehicleData) == 0 {
		return nil, errors.New("application is incomplete")
	}

	now := time.Now()
	app.Status = models.ApplicationStatusSubmitted
	app.SubmittedAt = &now

	if err := s.db.Save(app).Error; err != nil {
		return nil, fmt.Errorf("failed to submit application: %w", err)
	}

	return app, nil
}

// GetApplication fetches an application the applicant owns.
func (s *ApplicationService) GetApplication(id, applicantID uuid.UUID) (*models.Application, error) {
	return s.getOwned(id, applicantID)
}

// GetApplicantApplications lists the applicant's own applications.
func (s *ApplicationService) GetApplicantApplications(applicantID uuid.UUID, params utils.PaginationParams) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{}).Where("applicant_id = ?", applicantID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "submitted_at", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}

	return apps, total, nil
}

// SearchApplications is the admin review queue listing.
func (s *ApplicationService) SearchApplications(params ApplicationSearchParams) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{}).Preload("Applicant")

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.ApplicantID != nil {
		query = query.Where("applicant_id = ?", *params.ApplicantID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	allowedSortFields := []string{"created_at", "submitted_at", "status"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}

	return apps, total, nil
}

// Review approves or rejects a submitted application. Approval keeps the
// lead on the marketplace; rejection removes it from dealer listings.
func (s *ApplicationService) Review(id, adminID uuid.UUID, req *ReviewApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var app models.Application
	if err := s.db.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("application not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if app.Status != models.ApplicationStatusSubmitted {
		return nil, errors.New("only submitted applications can be reviewed")
	}

	now := time.Now()
	if req.Approve {
		app.Status = models.ApplicationStatusApproved
	} else {
		app.Status = models.ApplicationStatusRejected
	}
	app.ReviewedAt = &now
	app.ReviewedBy = &adminID
	app.ReviewNotes = req.Notes

	if err := s.db.Save(&app).Error; err != nil {
		return nil, fmt.Errorf("failed to review application: %w", err)
	}

	// Notify the applicant (async)
	reviewed := app
	go func() {
		if err := s.notifications.SendApplicationReviewedNotification(&reviewed, req.Approve); err != nil {
			logrus.WithError(err).WithField("application_id", reviewed.ID).Error("Failed to send review notification")
		}
	}()

	return &app, nil
}

// UploadDocument attaches a supporting file to the applicant's application.
func (s *ApplicationService) UploadDocument(id, applicantID uuid.UUID, file multipart.File, header *multipart.FileHeader) (*models.ApplicationDocument, error) {
	app, err := s.getOwned(id, applicantID)
	if err != nil {
		return nil, err
	}

	result, err := s.storageService.UploadFile(file, header, s.storageService.GetDefaultUploadOptions("documents"))
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &models.ApplicationDocument{
		ApplicationID: app.ID,
		FileName:      header.Filename,
		ContentType:   result.MimeType,
		SizeBytes:     result.Size,
		StorageKey:    result.Key,
	}

	if err := s.db.Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	return doc, nil
}

// GetDocuments lists the documents attached to an application.
func (s *ApplicationService) GetDocuments(applicationID uuid.UUID) ([]models.ApplicationDocument, error) {
	var docs []models.ApplicationDocument
	if err := s.db.Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return docs, nil
}

// DocumentDownloadURL returns a short-lived presigned URL for the document.
func (s *ApplicationService) DocumentDownloadURL(documentID uuid.UUID) (string, error) {
	var doc models.ApplicationDocument
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.New("document not found")
		}
		return "", fmt.Errorf("database error: %w", err)
	}
	return s.storageService.GeneratePresignedURL(doc.StorageKey, 15*time.Minute)
}

func (s *ApplicationService) getOwned(id, applicantID uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := s.db.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("application not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if app.ApplicantID == nil || *app.ApplicantID != applicantID {
		return nil, errors.New("application not found")
	}
	return &app, nil
}

func mergeJSONB(base models.JSONB, updates map[string]interface{}) models.JSONB {
	if base == nil {
		return models.JSONB(updates)
	}
	merged := make(models.JSONB, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
