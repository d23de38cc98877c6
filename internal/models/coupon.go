package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Description    string          `json:"description,omitempty"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	// MaxDiscountAmount caps percentage discounts only.
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	ValidFrom         time.Time           `json:"valid_from"`
	ValidUntil        time.Time           `json:"valid_until"`
	Active            bool                `json:"active"`
	// UsageLimit of 0 means unlimited.
	UsageLimit int `json:"usage_limit"`
	UsageCount int `json:"usage_count"`
}

// InWindow reports whether t falls in [ValidFrom, ValidUntil]. A zero bound is open.
func (c Coupon) InWindow(t time.Time) bool {
	if !c.ValidFrom.IsZero() && t.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidUntil.IsZero() && t.After(c.ValidUntil) {
		return false
	}
	return true
}

func (c Coupon) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}
