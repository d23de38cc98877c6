package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/cart"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notify"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/stores"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PlaceOrderRequest struct {
	payment.Confirmation
	DeliveryAddress string   `json:"delivery_address" validate:"required"`
	DeliveryPhone   string   `json:"delivery_phone" validate:"required"`
	DeliveryNotes   string   `json:"delivery_notes"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

func (r PlaceOrderRequest) delivery() models.Delivery {
	d := models.Delivery{Address: r.DeliveryAddress, Phone: r.DeliveryPhone, Notes: r.DeliveryNotes}
	if r.Latitude != nil && r.Longitude != nil {
		d.Latitude, d.Longitude = r.Latitude, r.Longitude
	}
	return d
}

// PlaceOrder turns the customer's cart into a confirmed order against a
// verified payment. Stock deduction, order creation and clearing the cart
// commit together or not at all.
func (c *Conf) PlaceOrder(ctx context.Context, customerID int64, req PlaceOrderRequest) (_ models.Order, err error) {
	const op = "orders.PlaceOrder"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer func() {
		if err != nil {
			c.metrics.recordRejected(ctx, err)
		}
		endSpan(span, err)
	}()
	traceId := ctxmanage.TraceIdFromContext(ctx)

	if err := c.validate.StructCtx(ctx, req); err != nil {
		return models.Order{}, apperr.E(op, apperr.Wrapf(apperr.ErrValidationFailed, "%v", err), customerID)
	}

	claimed := false
	if c.guard != nil {
		ok, err := c.guard.Claim(ctx, req.PaymentID)
		switch {
		case err != nil:
			// the unique payment id in the store still catches a replay
			slog.WarnContext(ctx, "replay guard unavailable",
				slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		case !ok:
			return models.Order{}, apperr.E(op, apperr.ErrDuplicatePayment, customerID)
		default:
			claimed = true
		}
	}

	order, email, err := c.placeOrder(ctx, customerID, req)
	if err != nil {
		if claimed {
			if rerr := c.guard.Release(context.WithoutCancel(ctx), req.PaymentID); rerr != nil {
				slog.WarnContext(ctx, "failed to release payment claim",
					slog.String(logkey.TraceID, traceId), slog.String(logkey.PaymentID, req.PaymentID),
					slog.String(logkey.ERROR, rerr.Error()))
			}
		}
		return models.Order{}, apperr.E(op, err, customerID)
	}

	slog.InfoContext(ctx, "order placed",
		slog.String(logkey.TraceID, traceId), slog.Int64(logkey.OrderID, order.ID),
		slog.Int64(logkey.CustomerID, customerID), slog.String("Total", order.Total.StringFixed(2)))
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	c.metrics.recordPlaced(ctx, order)
	notify.Emit(ctx, c.publisher, notify.NewEvent(notify.KindOrderPlaced, order, email, c.now()))
	return order, nil
}

func (c *Conf) placeOrder(ctx context.Context, customerID int64, req PlaceOrderRequest) (models.Order, string, error) {
	ok, err := c.verifier.Verify(ctx, req.Confirmation)
	if err != nil {
		return models.Order{}, "", fmt.Errorf("%w: %w", apperr.ErrPaymentVerificationFailed, err)
	}
	if !ok {
		return models.Order{}, "", apperr.ErrPaymentVerificationFailed
	}

	var (
		placed models.Order
		email  string
	)
	err = c.store.WithTx(ctx, func(tx stores.Tx) error {
		cust, err := tx.Customer(ctx, customerID)
		if err != nil {
			return err
		}
		email = cust.Email

		crt, err := cart.Load(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if crt.IsEmpty() {
			return apperr.ErrEmptyCart
		}

		if err := lockItems(ctx, tx, crt.Lines); err != nil {
			return err
		}

		order := models.Order{
			CustomerID:   customerID,
			CustomerName: cust.Name,
			CreatedAt:    c.now().UTC(),
			Delivery:     req.delivery(),
			Payment: models.Payment{
				OrderID:   req.GatewayOrderID,
				PaymentID: req.PaymentID,
				Signature: req.Signature,
				Verified:  true,
			},
			Status: models.StatusConfirmed,
			Total:  decimal.Zero,
		}
		for _, line := range crt.Lines {
			ol, err := c.takeLine(ctx, tx, line)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, ol)
			order.Total = order.Total.Add(ol.Subtotal())
		}

		placed, err = tx.InsertOrder(ctx, order)
		if err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.ErrDuplicatePayment
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}
		if err := tx.ClearCart(ctx, crt.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	return placed, email, err
}

// lockItems touches every item on the cart in ascending id order so that two
// placements sharing items always lock them in the same sequence.
func lockItems(ctx context.Context, tx stores.ItemStore, lines []models.CartLine) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := tx.Item(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// takeLine prices a cart line against the live item, checks the variant's
// stock and deducts it.
func (c *Conf) takeLine(ctx context.Context, tx stores.Tx, line models.CartLine) (models.OrderLine, error) {
	item, err := tx.Item(ctx, line.ItemID)
	if err != nil {
		return models.OrderLine{}, err
	}
	if err := inventory.CheckAvailability(item, line.Quantity, line.Variant); err != nil {
		return models.OrderLine{}, err
	}
	ol := models.OrderLine{
		ItemID:   &item.ID,
		ItemName: item.Name,
		Quantity: line.Quantity,
		Price:    c.pricing.UnitPrice(item, line),
		Variant:  line.Variant,
		Weight:   line.Weight,
	}
	if _, err := inventory.Deduct(ctx, tx, item.ID, line.Quantity, line.Variant); err != nil {
		return models.OrderLine{}, err
	}
	return ol, nil
}
