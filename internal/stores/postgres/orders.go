package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
)

const orderColumns = `
	id, customer_id, customer_name, created_at, total,
	delivery_address, delivery_phone, delivery_notes, latitude, longitude,
	payment_order_id, payment_id, payment_signature, payment_verified, status`

func scanOrder(s scanner) (models.Order, error) {
	var (
		o        models.Order
		lat, lng sql.NullFloat64
		status   string
	)
	err := s.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &o.CreatedAt, &o.Total,
		&o.Delivery.Address, &o.Delivery.Phone, &o.Delivery.Notes, &lat, &lng,
		&o.Payment.OrderID, &o.Payment.PaymentID, &o.Payment.Signature, &o.Payment.Verified, &status,
	)
	if err != nil {
		return models.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.Delivery.Latitude = floatPtr(lat)
	o.Delivery.Longitude = floatPtr(lng)
	o.Status = models.OrderStatus(status)
	return o, nil
}

func (t *tx) InsertOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.Payment.PaymentID != "" {
		var archived bool
		err := t.tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM order_history WHERE payment_id = $1)`, o.Payment.PaymentID,
		).Scan(&archived)
		if err != nil {
			return models.Order{}, fmt.Errorf("failed to check payment id: %w", err)
		}
		if archived {
			return models.Order{}, apperr.ErrConflict
		}
	}

	query := `
	INSERT INTO orders (
		customer_id, customer_name, created_at, total,
		delivery_address, delivery_phone, delivery_notes, latitude, longitude,
		payment_order_id, payment_id, payment_signature, payment_verified, status
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`

	err := t.tx.QueryRowContext(ctx, query,
		o.CustomerID, o.CustomerName, o.CreatedAt, o.Total,
		o.Delivery.Address, o.Delivery.Phone, o.Delivery.Notes,
		nullFloat(o.Delivery.Latitude), nullFloat(o.Delivery.Longitude),
		o.Payment.OrderID, o.Payment.PaymentID, o.Payment.Signature, o.Payment.Verified, string(o.Status),
	).Scan(&o.ID)
	if isUniqueViolation(err) {
		return models.Order{}, apperr.ErrConflict
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	lineQuery := `
	INSERT INTO order_lines (order_id, item_id, item_name, quantity, price, variant, weight)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

	lines := make([]models.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		l.OrderID = o.ID
		err := t.tx.QueryRowContext(ctx, lineQuery,
			l.OrderID, nullInt(l.ItemID), l.ItemName, l.Quantity, l.Price, string(l.Variant), l.Weight,
		).Scan(&l.ID)
		if err != nil {
			return models.Order{}, fmt.Errorf("failed to insert order line: %w", err)
		}
		lines[i] = l
	}
	o.Lines = lines
	return o, nil
}

func (t *tx) orderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	rows, err := t.tx.QueryContext(ctx, `
	SELECT id, order_id, item_id, item_name, quantity, price, variant, weight
	FROM order_lines
	WHERE order_id = $1
	ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to select order lines: %w", err)
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var (
			l       models.OrderLine
			itemID  sql.NullInt64
			variant string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &itemID, &l.ItemName, &l.Quantity, &l.Price, &variant, &l.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		l.ItemID = intPtr(itemID)
		l.Variant = models.Variant(variant)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order lines: %w", err)
	}
	return lines, nil
}

func (t *tx) Order(ctx context.Context, id int64) (models.Order, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to select order: %w", err)
	}
	o.Lines, err = t.orderLines(ctx, o.ID)
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}

// selectOrders drains the header rows before loading lines, since the
// connection cannot serve a second query while rows are open.
func (t *tx) selectOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for i := range orders {
		orders[i].Lines, err = t.orderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (t *tx) OrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	return t.selectOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY id`, customerID)
}

func (t *tx) Orders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if status == "" {
		return t.selectOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	}
	return t.selectOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY id`, string(status))
}

// UpdateOrder writes the status and delivery details. Lines are fixed at insert.
func (t *tx) UpdateOrder(ctx context.Context, o models.Order) error {
	query := `
	UPDATE orders
	SET status = $1, delivery_address = $2, delivery_phone = $3, delivery_notes = $4,
		latitude = $5, longitude = $6
	WHERE id = $7`

	res, err := t.tx.ExecContext(ctx, query,
		string(o.Status), o.Delivery.Address, o.Delivery.Phone, o.Delivery.Notes,
		nullFloat(o.Delivery.Latitude), nullFloat(o.Delivery.Longitude), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return expectRow(res, apperr.ErrOrderNotFound)
}

func (t *tx) DeleteOrder(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectRow(res, apperr.ErrOrderNotFound)
}
