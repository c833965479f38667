// internal/models/purchase.go
package models

import (
	"github.com/google/uuid"
)

// Purchase is an idempotent grant of permanent access to an application for
// one dealer. Rows are soft-deactivated, never hard-deleted, to preserve
// invoice history. At most one active row may exist per (dealer, application),
// and one payment reference records each application at most once; a checkout
// session covering several applications writes one row per application.
type Purchase struct {
	BaseModel
	ApplicationID    uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_purchases_dealer_app,where:is_active;uniqueIndex:idx_purchases_payment_app,priority:2"`
	DealerID         uuid.UUID `json:"dealer_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_purchases_dealer_app,where:is_active"`
	PaymentReference string    `json:"payment_reference" gorm:"size:255;not null;uniqueIndex:idx_purchases_payment_app,priority:1"`
	Amount           float64   `json:"amount" gorm:"type:decimal(10,2);not null"`
	Tier             PriceTier `json:"tier" gorm:"type:varchar(30)"`
	DiscountInfo     JSONB     `json:"discount_info" gorm:"type:jsonb"`
	IsActive         bool      `json:"is_active" gorm:"default:true;index"`

	// Relationships
	Application Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Dealer      User        `json:"dealer,omitempty" gorm:"foreignKey:DealerID"`
}
