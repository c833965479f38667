// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username        string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email           string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string     `json:"-" gorm:"size:255;not null"`
	UserType        UserType   `json:"user_type" gorm:"type:varchar(20);not null"`
	Status          UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	CompanyID       *uuid.UUID `json:"company_id" gorm:"type:uuid;index"`
	ProfileData     JSONB      `json:"profile_data" gorm:"type:jsonb"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`

	// Relationships
	Company   *Company          `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
	Locks     []ApplicationLock `json:"locks,omitempty" gorm:"foreignKey:DealerID"`
	Purchases []Purchase        `json:"purchases,omitempty" gorm:"foreignKey:DealerID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// Company groups dealer accounts for per-company pricing overrides.
type Company struct {
	BaseModel
	Name         string `json:"name" gorm:"size:255;not null;uniqueIndex"`
	ContactEmail string `json:"contact_email" gorm:"size:255"`
	Phone        string `json:"phone" gorm:"size:50"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	// Relationships
	Dealers []User `json:"dealers,omitempty" gorm:"foreignKey:CompanyID"`
}
