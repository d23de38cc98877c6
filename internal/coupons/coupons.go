package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Conf struct {
	store    stores.Store
	validate *validator.Validate
	now      func() time.Time
}

func NewConf(store stores.Store) (Conf, error) {
	if store == nil {
		return Conf{}, fmt.Errorf("store is nil")
	}
	return Conf{store: store, validate: validator.New(), now: time.Now}, nil
}

// Discount is the outcome of evaluating a coupon against an order amount.
type Discount struct {
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"discount"`
	Payable  decimal.Decimal `json:"payable"`
	Original decimal.Decimal `json:"original"`
}

// evaluate checks the coupon against amount at time now and computes the
// discount. Percentage discounts are capped; fixed ones are returned as is.
func evaluate(c models.Coupon, amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, apperr.ErrCouponInactive
	}
	if !c.InWindow(now) {
		return decimal.Zero, apperr.ErrCouponExpired
	}
	if amount.LessThan(c.MinOrderAmount) {
		return decimal.Zero, apperr.Wrapf(apperr.ErrMinimumNotMet, "minimum order is %s", c.MinOrderAmount.StringFixed(2))
	}

	var d decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		d = amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount.Valid && d.GreaterThan(c.MaxDiscountAmount.Decimal) {
			d = c.MaxDiscountAmount.Decimal
		}
	case models.DiscountFixed:
		d = c.DiscountValue
	default:
		return decimal.Zero, apperr.Wrapf(apperr.ErrCouponInvalid, "unknown discount type %q", c.DiscountType)
	}
	return d.Round(2), nil
}

func lookup(ctx context.Context, tx stores.CouponStore, code string) (models.Coupon, error) {
	c, err := tx.CouponByCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, apperr.ErrCouponNotFound) {
		return models.Coupon{}, apperr.ErrCouponInvalid
	}
	return c, err
}

func discount(code string, amount, d decimal.Decimal) Discount {
	return Discount{Code: strings.ToUpper(code), Amount: d, Original: amount, Payable: decimal.Max(amount.Sub(d), decimal.Zero)}
}

// CalculateDiscount previews a coupon. It never touches the usage counter.
func (c *Conf) CalculateDiscount(ctx context.Context, code string, amount decimal.Decimal) (Discount, error) {
	var d decimal.Decimal
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		cp, err := lookup(ctx, tx, code)
		if err != nil {
			return err
		}
		d, err = evaluate(cp, amount, c.now())
		return err
	})
	if err != nil {
		return Discount{}, apperr.E("coupons.CalculateDiscount", err, code)
	}
	return discount(code, amount, d), nil
}

// ApplyCoupon redeems a coupon: the same checks as CalculateDiscount plus the
// usage limit, and the usage counter goes up by one in the same transaction.
func (c *Conf) ApplyCoupon(ctx context.Context, code string, amount decimal.Decimal) (Discount, error) {
	var d decimal.Decimal
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		cp, err := lookup(ctx, tx, code)
		if err != nil {
			return err
		}
		d, err = evaluate(cp, amount, c.now())
		if err != nil {
			return err
		}
		if cp.Exhausted() {
			return apperr.ErrUsageLimitReached
		}
		return tx.IncrementCouponUsage(ctx, cp.ID)
	})
	if err != nil {
		return Discount{}, apperr.E("coupons.ApplyCoupon", err, code)
	}
	return discount(code, amount, d), nil
}

type NewCoupon struct {
	Code              string              `json:"code" validate:"required,alphanum,max=32"`
	Description       string              `json:"description"`
	DiscountType      models.DiscountType `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue     decimal.Decimal     `json:"discount_value"`
	MinOrderAmount    decimal.Decimal     `json:"min_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	ValidFrom         time.Time           `json:"valid_from"`
	ValidUntil        time.Time           `json:"valid_until"`
	Active            bool                `json:"active"`
	UsageLimit        int                 `json:"usage_limit" validate:"gte=0"`
}

func (n NewCoupon) check() error {
	if !n.DiscountValue.IsPositive() {
		return apperr.Wrapf(apperr.ErrValidationFailed, "discount value must be positive")
	}
	if n.DiscountType == models.DiscountPercentage && n.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return apperr.Wrapf(apperr.ErrValidationFailed, "percentage above 100")
	}
	if n.MinOrderAmount.IsNegative() {
		return apperr.Wrapf(apperr.ErrValidationFailed, "minimum order amount must not be negative")
	}
	if !n.ValidFrom.IsZero() && !n.ValidUntil.IsZero() && n.ValidUntil.Before(n.ValidFrom) {
		return apperr.Wrapf(apperr.ErrValidationFailed, "validity window ends before it starts")
	}
	return nil
}

// CreateCoupon stores a coupon under its upper-cased code.
func (c *Conf) CreateCoupon(ctx context.Context, n NewCoupon) (models.Coupon, error) {
	const op = "coupons.CreateCoupon"
	if err := c.validate.StructCtx(ctx, n); err != nil {
		return models.Coupon{}, apperr.E(op, apperr.Wrapf(apperr.ErrValidationFailed, "%v", err))
	}
	if err := n.check(); err != nil {
		return models.Coupon{}, apperr.E(op, err)
	}
	cp := models.Coupon{
		Code:              strings.ToUpper(n.Code),
		Description:       n.Description,
		DiscountType:      n.DiscountType,
		DiscountValue:     n.DiscountValue,
		MinOrderAmount:    n.MinOrderAmount,
		MaxDiscountAmount: n.MaxDiscountAmount,
		ValidFrom:         n.ValidFrom,
		ValidUntil:        n.ValidUntil,
		Active:            n.Active,
		UsageLimit:        n.UsageLimit,
	}
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		id, err := tx.CreateCoupon(ctx, cp)
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Wrapf(apperr.ErrValidationFailed, "coupon %s already exists", cp.Code)
		}
		cp.ID = id
		return err
	})
	if err != nil {
		return models.Coupon{}, apperr.E(op, err, cp.Code)
	}
	return cp, nil
}
