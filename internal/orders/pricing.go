package orders

import (
	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
)

// PricingPolicy resolves the unit price charged for a cart line at checkout.
type PricingPolicy struct {
	// EgglessSurcharge is added to the base price of EGGLESS lines that
	// carry no pinned price.
	EgglessSurcharge decimal.Decimal
}

func DefaultPricing() PricingPolicy {
	return PricingPolicy{EgglessSurcharge: decimal.NewFromInt(30)}
}

// UnitPrice returns the pinned price when one was captured and is positive.
// Otherwise it is the item's base price for the line's weight plus any
// variant surcharge.
func (p PricingPolicy) UnitPrice(item models.Item, line models.CartLine) decimal.Decimal {
	if line.PinnedPrice.Valid && line.PinnedPrice.Decimal.IsPositive() {
		return line.PinnedPrice.Decimal
	}
	price := item.BasePrice(line.Weight)
	if line.Variant.IsEggless() {
		price = price.Add(p.EgglessSurcharge)
	}
	return price
}
