package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delivery holds where and how an order is handed over.
type Delivery struct {
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Notes     string   `json:"notes,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Payment identifies the gateway confirmation an order was placed against.
type Payment struct {
	OrderID   string `json:"payment_order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"-"`
	Verified  bool   `json:"payment_verified"`
}

type Order struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	CreatedAt    time.Time       `json:"created_at"`
	Total        decimal.Decimal `json:"total"`
	Delivery     Delivery        `json:"delivery"`
	Payment      Payment         `json:"payment"`
	Status       OrderStatus     `json:"status"`
	Lines        []OrderLine     `json:"lines"`
}

// OrderLine is a priced snapshot of a cart line taken at placement.
type OrderLine struct {
	ID      int64 `json:"id"`
	OrderID int64 `json:"order_id"`
	// ItemID becomes nil once the catalog item is deleted.
	ItemID   *int64              `json:"item_id"`
	ItemName string              `json:"item_name"`
	Quantity int                 `json:"quantity"`
	Price    decimal.Decimal     `json:"price"`
	Variant  Variant             `json:"variant,omitempty"`
	Weight   decimal.NullDecimal `json:"weight"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums price times quantity over every line.
func (o Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// OwnedBy reports whether customerID placed the order.
func (o Order) OwnedBy(customerID int64) bool {
	return o.CustomerID == customerID
}
