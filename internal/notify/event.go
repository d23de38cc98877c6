// Package notify carries order notifications out of the business transaction.
// Services emit an Event after commit; delivery happens elsewhere and its
// failures never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOrderPlaced    Kind = "order.placed"
	KindOutForDelivery Kind = "order.out_for_delivery"
	KindDelivered      Kind = "order.delivered"
	KindAddressChanged Kind = "order.address_changed"
)

type Event struct {
	ID            string             `json:"id"`
	Kind          Kind               `json:"kind"`
	OrderID       int64              `json:"order_id"`
	CustomerID    int64              `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Total         decimal.Decimal    `json:"total"`
	Status        models.OrderStatus `json:"status"`
	Delivery      models.Delivery    `json:"delivery"`
	// Previous is set on address changes and holds the replaced values.
	Previous   *models.Delivery `json:"previous,omitempty"`
	Lines      []Line           `json:"lines,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type Line struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Variant  models.Variant  `json:"variant,omitempty"`
}

// NewEvent builds an event from an order snapshot.
func NewEvent(kind Kind, o models.Order, email string, at time.Time) Event {
	e := Event{
		ID:            uuid.NewString(),
		Kind:          kind,
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerEmail: email,
		Total:         o.Total,
		Status:        o.Status,
		Delivery:      o.Delivery,
		OccurredAt:    at.UTC(),
	}
	for _, l := range o.Lines {
		e.Lines = append(e.Lines, Line{ItemName: l.ItemName, Quantity: l.Quantity, Price: l.Price, Variant: l.Variant})
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler consumes events, typically by sending mail.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Emit publishes e and swallows any failure after logging it.
// A nil publisher drops the event.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "notification not published",
			slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
			slog.String(logkey.Event, string(e.Kind)),
			slog.Int64(logkey.OrderID, e.OrderID),
			slog.String(logkey.ERROR, err.Error()))
	}
}
