package orders

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/notify"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/stores"
	"fulfillment-service/internal/stores/cache"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Conf struct {
	store     stores.Store
	verifier  payment.Verifier
	guard     cache.ReplayGuard
	publisher notify.Publisher
	pricing   PricingPolicy
	validate  *validator.Validate
	now       func() time.Time
	metrics   instruments
	meters    metric.MeterProvider
}

type Option func(*Conf)

// WithReplayGuard rejects a payment id that already produced an order
// before the payment oracle is consulted.
func WithReplayGuard(g cache.ReplayGuard) Option {
	return func(c *Conf) { c.guard = g }
}

func WithPublisher(p notify.Publisher) Option {
	return func(c *Conf) { c.publisher = p }
}

func WithPricing(p PricingPolicy) Option {
	return func(c *Conf) { c.pricing = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Conf) { c.now = now }
}

// WithMeterProvider records order metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Conf) { c.meters = mp }
}

func NewConf(store stores.Store, verifier payment.Verifier, opts ...Option) (Conf, error) {
	if store == nil {
		return Conf{}, fmt.Errorf("store is nil")
	}
	if verifier == nil {
		return Conf{}, fmt.Errorf("payment verifier is nil")
	}
	c := Conf{
		store:    store,
		verifier: verifier,
		pricing:  DefaultPricing(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.meters == nil {
		c.meters = otel.GetMeterProvider()
	}
	in, err := newInstruments(c.meters)
	if err != nil {
		return Conf{}, err
	}
	c.metrics = in
	return c, nil
}

func (c *Conf) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var o models.Order
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		o, err = tx.Order(ctx, orderID)
		return err
	})
	if err != nil {
		return models.Order{}, apperr.E("orders.GetOrder", err, orderID)
	}
	return o, nil
}

func (c *Conf) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	var out []models.Order
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = tx.OrdersByCustomer(ctx, customerID)
		return err
	})
	return out, apperr.E("orders.ListByCustomer", err, customerID)
}

// ListAll returns every live order, or only those in status when it is set.
func (c *Conf) ListAll(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = tx.Orders(ctx, status)
		return err
	})
	return out, apperr.E("orders.ListAll", err)
}

// customerEmail is best effort: a missing customer only loses the mail.
func customerEmail(ctx context.Context, tx stores.Tx, customerID int64) string {
	cust, err := tx.Customer(ctx, customerID)
	if err != nil {
		return ""
	}
	return cust.Email
}
