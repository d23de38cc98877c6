package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"fulfillment-service/internal/apperr"

	"github.com/shopspring/decimal"
)

// Variant is a mutually exclusive sub-SKU of an item with its own stock counter.
type Variant string

const (
	VariantNone    Variant = ""
	VariantRegular Variant = "REGULAR"
	VariantEggless Variant = "EGGLESS"
)

// ParseVariant accepts the storefront spellings; "EGG" is the legacy name of REGULAR.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return VariantNone, nil
	case "REGULAR", "EGG":
		return VariantRegular, nil
	case "EGGLESS":
		return VariantEggless, nil
	}
	return VariantNone, apperr.Wrapf(apperr.ErrValidationFailed, "unknown variant %q", s)
}

// UnmarshalJSON normalises the variant so "egg" and "REGULAR" decode alike.
func (v *Variant) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Variant) IsEggless() bool {
	return v == VariantEggless
}

// Item is the stock-bearing catalog entry.
type Item struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	// WeightPrices maps a weight in kg ("1", "1.5") to a flat price for that weight.
	WeightPrices map[string]decimal.Decimal `json:"weight_prices,omitempty"`
	RegularStock int                        `json:"regular_stock"`
	EgglessStock int                        `json:"eggless_stock"`
	Available    bool                       `json:"available"`
}

// StockFor returns the counter that backs the given variant.
func (i Item) StockFor(v Variant) int {
	if v.IsEggless() {
		return i.EgglessStock
	}
	return i.RegularStock
}

// Exhausted reports whether every variant counter is used up.
func (i Item) Exhausted() bool {
	return i.RegularStock <= 0 && i.EgglessStock <= 0
}

// BasePrice is the weight table price when the weight is listed, else the flat price.
func (i Item) BasePrice(weight decimal.NullDecimal) decimal.Decimal {
	if weight.Valid && len(i.WeightPrices) > 0 {
		if p, ok := i.WeightPrices[WeightKey(weight.Decimal)]; ok {
			return p
		}
	}
	return i.Price
}

// ValidPrice reports whether d is a non-negative amount in whole paise, the
// precision prices are stored at.
func ValidPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

// WeightKey normalises a weight to the key format used in WeightPrices.
func WeightKey(w decimal.Decimal) string {
	return w.String()
}

func (i Item) String() string {
	return fmt.Sprintf("%s (#%d)", i.Name, i.ID)
}
