package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Cart owns its lines; a line refers back to the cart by id only.
type Cart struct {
	ID         int64      `json:"id"`
	CustomerID int64      `json:"customer_id"`
	Lines      []CartLine `json:"lines"`
}

type CartLine struct {
	ID       int64   `json:"id"`
	CartID   int64   `json:"cart_id"`
	ItemID   int64   `json:"item_id"`
	Quantity int     `json:"quantity"`
	Variant  Variant `json:"variant,omitempty"`
	// Weight is the selected weight in kg for variable-weight goods.
	Weight decimal.NullDecimal `json:"weight"`
	// PinnedPrice is captured at add time and charged verbatim at checkout.
	PinnedPrice decimal.NullDecimal `json:"pinned_price"`
}

// Matches reports whether the line is the merge target for (item, variant, weight).
func (l CartLine) Matches(itemID int64, v Variant, weight decimal.NullDecimal) bool {
	return l.ItemID == itemID && l.Variant == v && NullDecimalEqual(l.Weight, weight)
}

// FindLine returns the index of the line matching (item, variant, weight).
func (c *Cart) FindLine(itemID int64, v Variant, weight decimal.NullDecimal) (int, bool) {
	for i, l := range c.Lines {
		if l.Matches(itemID, v, weight) {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) Line(lineID int64) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Detach removes the line from the aggregate and returns it.
func (c *Cart) Detach(lineID int64) (CartLine, bool) {
	for i, l := range c.Lines {
		if l.ID == lineID {
			c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
			return l, true
		}
	}
	return CartLine{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// NullDecimalEqual compares two optional decimals; two nulls are equal.
func NullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
