// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeApplicant UserType = "applicant"
	UserTypeDealer    UserType = "dealer"
	UserTypeAdmin     UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

type LockKind string

const (
	LockKindTemporary LockKind = "temporary"
	LockKind24Hours   LockKind = "24hours"
	LockKind1Week     LockKind = "1week"
	LockKindPermanent LockKind = "permanent"
	LockKindPurchase  LockKind = "purchase_lock"
)

type PaymentKind string

const (
	PaymentKindPurchase      PaymentKind = "purchase"
	PaymentKindLockExtension PaymentKind = "lock_extension"
)

type PriceTier string

const (
	PriceTierFreeRedownload  PriceTier = "free_redownload"
	PriceTierCompanyOverride PriceTier = "company_override"
	PriceTierStandard        PriceTier = "standard"
	PriceTierDiscounted      PriceTier = "discounted"
	PriceTierAgeDiscounted   PriceTier = "age_discounted"
)

type NotificationStatus string

const (
	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)
