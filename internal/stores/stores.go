// Package stores declares the persistence port shared by the domain services.
// Every business operation runs inside Store.WithTx and sees a Tx whose reads
// of items, orders and coupons are locked for the rest of the transaction.
package stores

import (
	"context"

	"fulfillment-service/internal/models"
)

type Store interface {
	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

type Tx interface {
	ItemStore
	CustomerStore
	CartStore
	OrderStore
	HistoryStore
	CouponStore
}

type ItemStore interface {
	// Item loads and locks the item row.
	Item(ctx context.Context, id int64) (models.Item, error)
	CreateItem(ctx context.Context, item models.Item) (int64, error)
	// SaveItemStock persists both counters and the availability flag.
	SaveItemStock(ctx context.Context, item models.Item) error
	// DeleteItem removes the item, its cart lines and nulls order line references.
	DeleteItem(ctx context.Context, id int64) error
	CountActiveOrderLines(ctx context.Context, itemID int64) (int, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, c models.Customer) (int64, error)
	Customer(ctx context.Context, id int64) (models.Customer, error)
	// DeleteCustomer cascades to the cart and live orders. History is kept.
	DeleteCustomer(ctx context.Context, id int64) error
}

type CartStore interface {
	CreateCart(ctx context.Context, customerID int64) (int64, error)
	// CartByCustomer returns the cart with its lines ordered by id.
	CartByCustomer(ctx context.Context, customerID int64) (models.Cart, error)
	CartLine(ctx context.Context, lineID int64) (models.CartLine, error)
	InsertCartLine(ctx context.Context, line models.CartLine) (int64, error)
	UpdateCartLine(ctx context.Context, line models.CartLine) error
	DeleteCartLine(ctx context.Context, lineID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

type OrderStore interface {
	// InsertOrder stores the order and its lines and returns the order with ids set.
	InsertOrder(ctx context.Context, o models.Order) (models.Order, error)
	// Order loads and locks the order with its lines.
	Order(ctx context.Context, id int64) (models.Order, error)
	OrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	// Orders lists every order, or only those in status when it is non-empty.
	Orders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	UpdateOrder(ctx context.Context, o models.Order) error
	DeleteOrder(ctx context.Context, id int64) error
}

type HistoryStore interface {
	InsertHistory(ctx context.Context, h models.OrderHistory) (int64, error)
	HistoryByCustomer(ctx context.Context, customerID int64) ([]models.OrderHistory, error)
	HistoryBySourceOrder(ctx context.Context, orderID int64) (models.OrderHistory, error)
	History(ctx context.Context) ([]models.OrderHistory, error)
	CountHistoryLines(ctx context.Context, itemID int64) (int, error)
}

type CouponStore interface {
	// CouponByCode matches case-insensitively and locks the row.
	CouponByCode(ctx context.Context, code string) (models.Coupon, error)
	CreateCoupon(ctx context.Context, c models.Coupon) (int64, error)
	IncrementCouponUsage(ctx context.Context, id int64) error
}
