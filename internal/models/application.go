// internal/models/application.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Application is a consumer vehicle-loan lead. Applicant fields are opaque
// to the marketplace core and stored as submitted.
type Application struct {
	BaseModel
	ApplicantID   *uuid.UUID        `json:"applicant_id" gorm:"type:uuid;index"`
	Status        ApplicationStatus `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	ApplicantData JSONB             `json:"applicant_data" gorm:"type:jsonb"`
	VehicleData   JSONB             `json:"vehicle_data" gorm:"type:jsonb"`
	CurrentStep   int               `json:"current_step" gorm:"default:1"`
	SubmittedAt   *time.Time        `json:"submitted_at" gorm:"index"`
	ReviewedAt    *time.Time        `json:"reviewed_at"`
	ReviewedBy    *uuid.UUID        `json:"reviewed_by" gorm:"type:uuid"`
	ReviewNotes   string            `json:"review_notes,omitempty" gorm:"type:text"`

	// Set once a permanent lock or completed purchase claims the lead.
	// Terminal from the marketplace's perspective.
	PermanentlyUnavailable bool `json:"permanently_unavailable" gorm:"default:false;index"`

	// Relationships
	Applicant *User             `json:"applicant,omitempty" gorm:"foreignKey:ApplicantID"`
	Reviewer  *User             `json:"reviewer,omitempty" gorm:"foreignKey:ReviewedBy"`
	Locks     []ApplicationLock `json:"locks,omitempty" gorm:"foreignKey:ApplicationID"`
	Purchases []Purchase        `json:"purchases,omitempty" gorm:"foreignKey:ApplicationID"`
}

// AgeDays is the application's age in whole days since submission,
// evaluated at t. Unsubmitted applications have age zero.
func (a *Application) AgeDays(t time.Time) int {
	if a.SubmittedAt == nil {
		return 0
	}
	days := int(t.Sub(*a.SubmittedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ApplicationDocument is a supporting file (proof of income, ID) attached
// to an application and stored in S3.
type ApplicationDocument struct {
	BaseModel
	ApplicationID uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index"`
	FileName      string    `json:"file_name" gorm:"size:255;not null"`
	ContentType   string    `json:"content_type" gorm:"size:100"`
	SizeBytes     int64     `json:"size_bytes"`
	StorageKey    string    `json:"storage_key" gorm:"size:512;not null"`

	// Relationships
	Application Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
}
