// internal/services/user_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

type UserService struct {
	db             *gorm.DB
	storageService *StorageService
}

type UpdateUserProfileRequest struct {
	Username    string                 `json:"username,omitempty" validate:"omitempty,username"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

func NewUserService(db *gorm.DB, storageService *StorageService) *UserService {
	return &UserService{
		db:             db,
		storageService: storageService,
	}
}

func (s *UserService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Company").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(userID uuid.UUID, req *UpdateUserProfileRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	// Check username uniqueness if updating
	if req.Username != "" && req.Username != user.Username {
		var existingUser models.User
		if err := s.db.Where("username = ? AND id != ?", req.Username, userID).First(&existingUser).Error; err == nil {
			return nil, errors.New("username already taken")
		}
	}

	if req.Username != "" {
		user.Username = req.Username
	}

	if req.ProfileData != nil {
		if user.ProfileData == nil {
			user.ProfileData = make(models.JSONB)
		}
		// Merge with existing profile data
		for key, value := range req.ProfileData {
			user.ProfileData[key] = value
		}
	}

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return &user, nil
}

func (s *UserService) DeleteAccount(userID uuid.UUID, password string) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	if err := user.CheckPassword(password); err != nil {
		return errors.New("invalid password")
	}

	// Dealers holding live claims on leads cannot walk away from them.
	var lockCount int64
	s.db.Model(&models.ApplicationLock{}).
		Where("dealer_id = ? AND expires_at > ?", userID, time.Now()).
		Count(&lockCount)
	if lockCount > 0 {
		return errors.New("cannot delete account while holding active locks")
	}

	// Purge stored documents before the owning rows go away. Storage
	// deletion is best effort; an orphaned object is not worth failing
	// account deletion over.
	var docs []models.ApplicationDocument
	s.db.Joins("JOIN applications ON applications.id = application_documents.application_id").
		Where("applications.applicant_id = ?", userID).
		Find(&docs)
	for _, doc := range docs {
		if err := s.storageService.DeleteFile(doc.StorageKey); err != nil {
			logrus.WithError(err).WithField("storage_key", doc.StorageKey).Warn("Failed to delete stored document")
		}
	}

	// Soft delete user
	if err := s.db.Delete(&user).Error; err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}
