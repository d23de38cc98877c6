package orders

import (
	"context"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "fulfillment-service/orders"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	placed      metric.Int64Counter
	rejected    metric.Int64Counter
	transitions metric.Int64Counter
	revenue     metric.Float64Counter
}

func newInstruments(mp metric.MeterProvider) (instruments, error) {
	meter := mp.Meter(instrumentationName)
	var (
		in   instruments
		err  error
		errs []error
	)
	in.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders created from a cart"),
		metric.WithUnit("{order}"))
	errs = append(errs, err)
	in.rejected, err = meter.Int64Counter("orders.rejected",
		metric.WithDescription("Placements that failed, by reason"),
		metric.WithUnit("{order}"))
	errs = append(errs, err)
	in.transitions, err = meter.Int64Counter("orders.status_changes",
		metric.WithDescription("Lifecycle transitions, by target status"),
		metric.WithUnit("{order}"))
	errs = append(errs, err)
	in.revenue, err = meter.Float64Counter("orders.revenue",
		metric.WithDescription("Sum of placed order totals"),
		metric.WithUnit("{INR}"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return instruments{}, fmt.Errorf("failed to create order metrics: %w", err)
	}
	return in, nil
}

// rejectReason buckets a placement error for the rejected counter.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidationFailed):
		return "validation"
	case errors.Is(err, apperr.ErrPaymentVerificationFailed):
		return "payment"
	case errors.Is(err, apperr.ErrDuplicatePayment):
		return "duplicate_payment"
	case errors.Is(err, apperr.ErrEmptyCart):
		return "empty_cart"
	case apperr.IsInventoryError(err):
		return "stock"
	case apperr.IsNotFound(err):
		return "not_found"
	}
	return "internal"
}

func (in instruments) recordPlaced(ctx context.Context, o models.Order) {
	in.placed.Add(ctx, 1)
	total, _ := o.Total.Float64()
	in.revenue.Add(ctx, total)
}

func (in instruments) recordRejected(ctx context.Context, err error) {
	in.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
}

func (in instruments) recordTransition(ctx context.Context, to models.OrderStatus) {
	in.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
}

// endSpan records err on the span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
