package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
)

func (t *tx) CouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	query := `
	SELECT id, code, description, discount_type, discount_value, min_order_amount, max_discount_amount,
		valid_from, valid_until, active, usage_limit, usage_count
	FROM coupons
	WHERE UPPER(code) = UPPER($1)
	FOR UPDATE`

	var (
		c            models.Coupon
		discountType string
		from, until  sql.NullTime
	)
	err := t.tx.QueryRowContext(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue, &c.MinOrderAmount, &c.MaxDiscountAmount,
		&from, &until, &c.Active, &c.UsageLimit, &c.UsageCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Coupon{}, apperr.ErrCouponNotFound
	}
	if err != nil {
		return models.Coupon{}, fmt.Errorf("failed to select coupon: %w", err)
	}
	c.DiscountType = models.DiscountType(discountType)
	c.ValidFrom = timeOrZero(from)
	c.ValidUntil = timeOrZero(until)
	return c, nil
}

func (t *tx) CreateCoupon(ctx context.Context, c models.Coupon) (int64, error) {
	query := `
	INSERT INTO coupons (code, description, discount_type, discount_value, min_order_amount,
		max_discount_amount, valid_from, valid_until, active, usage_limit, usage_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue, c.MinOrderAmount,
		c.MaxDiscountAmount, nullTime(c.ValidFrom), nullTime(c.ValidUntil), c.Active, c.UsageLimit, c.UsageCount,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperr.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert coupon: %w", err)
	}
	return id, nil
}

func (t *tx) IncrementCouponUsage(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return expectRow(res, apperr.ErrCouponNotFound)
}
