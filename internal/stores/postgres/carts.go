package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
)

func (t *tx) CreateCustomer(ctx context.Context, c models.Customer) (int64, error) {
	query := `
	INSERT INTO customers (name, email, created_at)
	VALUES ($1, $2, $3)
	RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, query, c.Name, c.Email, c.CreatedAt).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperr.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert customer: %w", err)
	}
	return id, nil
}

func (t *tx) Customer(ctx context.Context, id int64) (models.Customer, error) {
	var c models.Customer
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, apperr.ErrCustomerNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to select customer: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (t *tx) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return expectRow(res, apperr.ErrCustomerNotFound)
}

func (t *tx) CreateCart(ctx context.Context, customerID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO carts (customer_id) VALUES ($1) RETURNING id`, customerID,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperr.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert cart: %w", err)
	}
	return id, nil
}

const cartLineColumns = `id, cart_id, item_id, quantity, variant, weight, pinned_price`

type scanner interface {
	Scan(dest ...any) error
}

func scanCartLine(s scanner) (models.CartLine, error) {
	var (
		l       models.CartLine
		variant string
	)
	if err := s.Scan(&l.ID, &l.CartID, &l.ItemID, &l.Quantity, &variant, &l.Weight, &l.PinnedPrice); err != nil {
		return models.CartLine{}, err
	}
	l.Variant = models.Variant(variant)
	return l, nil
}

func (t *tx) CartByCustomer(ctx context.Context, customerID int64) (models.Cart, error) {
	cart := models.Cart{CustomerID: customerID, Lines: []models.CartLine{}}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE customer_id = $1 FOR UPDATE`, customerID,
	).Scan(&cart.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cart{}, apperr.ErrCartNotFound
	}
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to select cart: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+cartLineColumns+` FROM cart_lines WHERE cart_id = $1 ORDER BY id`, cart.ID)
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to select cart lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return models.Cart{}, fmt.Errorf("failed to scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return models.Cart{}, fmt.Errorf("failed to iterate cart lines: %w", err)
	}
	return cart, nil
}

func (t *tx) CartLine(ctx context.Context, lineID int64) (models.CartLine, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+cartLineColumns+` FROM cart_lines WHERE id = $1 FOR UPDATE`, lineID)
	l, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CartLine{}, apperr.ErrCartLineNotFound
	}
	if err != nil {
		return models.CartLine{}, fmt.Errorf("failed to select cart line: %w", err)
	}
	return l, nil
}

func (t *tx) InsertCartLine(ctx context.Context, line models.CartLine) (int64, error) {
	query := `
	INSERT INTO cart_lines (cart_id, item_id, quantity, variant, weight, pinned_price)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		line.CartID, line.ItemID, line.Quantity, string(line.Variant), line.Weight, line.PinnedPrice,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperr.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert cart line: %w", err)
	}
	return id, nil
}

func (t *tx) UpdateCartLine(ctx context.Context, line models.CartLine) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE cart_lines SET quantity = $1, pinned_price = $2 WHERE id = $3`,
		line.Quantity, line.PinnedPrice, line.ID)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	return expectRow(res, apperr.ErrCartLineNotFound)
}

func (t *tx) DeleteCartLine(ctx context.Context, lineID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return expectRow(res, apperr.ErrCartLineNotFound)
}

func (t *tx) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
