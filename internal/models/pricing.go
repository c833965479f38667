// internal/models/pricing.go
package models

import (
	"github.com/google/uuid"
)

// PricingPolicy configures lead pricing. A row with a nil CompanyID is the
// global policy; a row with a CompanyID overrides prices for that company's
// dealers. Exactly one active row per scope.
type PricingPolicy struct {
	BaseModel
	CompanyID *uuid.UUID `json:"company_id" gorm:"type:uuid;uniqueIndex:idx_pricing_company,where:is_active"`

	// StandardPrice is charged for a fresh lead; DiscountedPrice once a
	// prior lock has lapsed without purchase. Both must be positive and
	// DiscountedPrice strictly less than StandardPrice.
	StandardPrice   float64 `json:"standard_price" gorm:"type:decimal(10,2);not null"`
	DiscountedPrice float64 `json:"discounted_price" gorm:"type:decimal(10,2);not null"`

	// Age-based discount, applied once a lead is at least AgeDiscountDays
	// old. Mutually exclusive with the lock-lapse discount; the lower
	// resulting price wins.
	AgeDiscountEnabled bool    `json:"age_discount_enabled" gorm:"default:false"`
	AgeDiscountDays    int     `json:"age_discount_days" gorm:"default:0"`
	AgeDiscountPercent float64 `json:"age_discount_percent" gorm:"type:decimal(5,2);default:0"`

	// LockFees maps lock kind to fee, e.g. {"24hours": 2.00, "1week": 5.00}.
	LockFees JSONB `json:"lock_fees" gorm:"type:jsonb"`

	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	UpdatedBy uuid.UUID `json:"updated_by" gorm:"type:uuid"`

	// Relationships
	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID"`
}

// LockFee returns the configured fee for a lock kind, if present.
func (p *PricingPolicy) LockFee(kind LockKind) (float64, bool) {
	if p.LockFees == nil {
		return 0, false
	}
	v, ok := p.LockFees[string(kind)]
	if !ok {
		return 0, false
	}
	switch fee := v.(type) {
	case float64:
		return fee, true
	case int:
		return float64(fee), true
	default:
		return 0, false
	}
}

// PriceQuote is the result of a price resolution.
type PriceQuote struct {
	Amount float64   `json:"amount"`
	Tier   PriceTier `json:"tier"`
	Reason string    `json:"reason"`
}
