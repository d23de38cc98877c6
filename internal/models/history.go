package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderHistory is the immutable record of a delivered order. It copies the
// customer's id and name rather than referencing the customer row.
type OrderHistory struct {
	ID            int64           `json:"id"`
	SourceOrderID int64           `json:"source_order_id"`
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	OrderDate     time.Time       `json:"order_date"`
	DeliveredAt   time.Time       `json:"delivered_at"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	Delivery      Delivery        `json:"delivery"`
	PaymentID     string          `json:"payment_id"`
	Lines         []HistoryLine   `json:"lines"`
}

type HistoryLine struct {
	ID        int64               `json:"id"`
	HistoryID int64               `json:"history_id"`
	ItemID    *int64              `json:"item_id"`
	ItemName  string              `json:"item_name"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.Decimal     `json:"price"`
	Variant   Variant             `json:"variant,omitempty"`
	Weight    decimal.NullDecimal `json:"weight"`
}

// NewHistory snapshots a delivered order. Line ids are left for the store to assign.
func NewHistory(o Order, deliveredAt time.Time) OrderHistory {
	h := OrderHistory{
		SourceOrderID: o.ID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		OrderDate:     o.CreatedAt,
		DeliveredAt:   deliveredAt,
		Total:         o.Total,
		Status:        StatusDelivered,
		Delivery:      o.Delivery,
		PaymentID:     o.Payment.PaymentID,
		Lines:         make([]HistoryLine, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		h.Lines = append(h.Lines, HistoryLine{
			ItemID:   copyID(l.ItemID),
			ItemName: l.ItemName,
			Quantity: l.Quantity,
			Price:    l.Price,
			Variant:  l.Variant,
			Weight:   l.Weight,
		})
	}
	return h
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
