package orders

import (
	"context"
	"fmt"
	"log/slog"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/history"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notify"
	"fulfillment-service/internal/stores"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UpdateStatus moves an order along the transition table. Reaching Delivered
// archives the order in the same transaction, so afterwards only its history
// record exists. Cancelled is reached through Cancel only.
func (c *Conf) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (_ models.Order, err error) {
	const op = "orders.UpdateStatus"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer func() { endSpan(span, err) }()
	status, err = models.ParseStatus(string(status))
	if err != nil {
		return models.Order{}, apperr.E(op, err, orderID)
	}
	if status == models.StatusCancelled {
		return models.Order{}, apperr.E(op, apperr.Wrapf(apperr.ErrInvalidTransition, "orders are cancelled through Cancel"), orderID)
	}

	var (
		o     models.Order
		email string
	)
	err = c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		o, err = tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(status) {
			return apperr.Wrapf(apperr.ErrInvalidTransition, "%q to %q", o.Status, status)
		}
		o.Status = status
		email = customerEmail(ctx, tx, o.CustomerID)

		if status.IsDelivered() {
			_, err := history.Archive(ctx, tx, o, c.now())
			return err
		}
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return models.Order{}, apperr.E(op, err, orderID)
	}

	slog.InfoContext(ctx, "order status updated",
		slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.Int64(logkey.OrderID, orderID), slog.String(logkey.Status, string(status)))
	c.metrics.recordTransition(ctx, status)

	switch status {
	case models.StatusOutForDelivery:
		notify.Emit(ctx, c.publisher, notify.NewEvent(notify.KindOutForDelivery, o, email, c.now()))
	case models.StatusDelivered:
		notify.Emit(ctx, c.publisher, notify.NewEvent(notify.KindDelivered, o, email, c.now()))
	}
	return o, nil
}

// Cancel lets a customer withdraw an order that has not left the shop yet.
// Stock goes back to the counter each line was taken from and the order is
// deleted without an archive record.
func (c *Conf) Cancel(ctx context.Context, orderID, customerID int64) (err error) {
	const op = "orders.Cancel"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer func() { endSpan(span, err) }()
	err = c.store.WithTx(ctx, func(tx stores.Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.OwnedBy(customerID) {
			return apperr.ErrUnauthorized
		}
		if !o.Status.Cancellable() {
			return apperr.Wrapf(apperr.ErrInvalidTransition, "order is %q", o.Status)
		}
		for _, l := range o.Lines {
			if l.ItemID == nil {
				continue
			}
			if _, err := inventory.Restore(ctx, tx, *l.ItemID, l.Quantity, l.Variant); err != nil {
				return fmt.Errorf("failed to restore stock for item %d: %w", *l.ItemID, err)
			}
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return apperr.E(op, err, orderID)
	}
	slog.InfoContext(ctx, "order cancelled",
		slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.Int64(logkey.OrderID, orderID), slog.Int64(logkey.CustomerID, customerID))
	c.metrics.recordTransition(ctx, models.StatusCancelled)
	return nil
}

type AddressUpdate struct {
	Address string `json:"address" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	// Notes is left untouched when nil.
	Notes *string `json:"notes"`
	// Coordinates are replaced only when both are supplied.
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// UpdateAddress changes the delivery details of an undelivered order and tells
// the operator what changed.
func (c *Conf) UpdateAddress(ctx context.Context, orderID, customerID int64, u AddressUpdate) (models.Order, error) {
	const op = "orders.UpdateAddress"
	if err := c.validate.StructCtx(ctx, u); err != nil {
		return models.Order{}, apperr.E(op, apperr.Wrapf(apperr.ErrValidationFailed, "%v", err), orderID)
	}

	var (
		o    models.Order
		prev models.Delivery
	)
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		o, err = tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.OwnedBy(customerID) {
			return apperr.ErrUnauthorized
		}
		if o.Status.IsDelivered() {
			return apperr.Wrapf(apperr.ErrInvalidState, "order already delivered")
		}
		prev = o.Delivery
		o.Delivery.Address = u.Address
		o.Delivery.Phone = u.Phone
		if u.Notes != nil {
			o.Delivery.Notes = *u.Notes
		}
		if u.Latitude != nil && u.Longitude != nil {
			o.Delivery.Latitude, o.Delivery.Longitude = u.Latitude, u.Longitude
		}
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return models.Order{}, apperr.E(op, err, orderID)
	}

	e := notify.NewEvent(notify.KindAddressChanged, o, "", c.now())
	e.Previous = &prev
	notify.Emit(ctx, c.publisher, e)
	return o, nil
}
