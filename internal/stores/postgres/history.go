package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
)

const historyColumns = `
	id, source_order_id, customer_id, customer_name, order_date, delivered_at, total, status,
	delivery_address, delivery_phone, delivery_notes, latitude, longitude, payment_id`

func scanHistory(s scanner) (models.OrderHistory, error) {
	var (
		h        models.OrderHistory
		lat, lng sql.NullFloat64
		status   string
	)
	err := s.Scan(
		&h.ID, &h.SourceOrderID, &h.CustomerID, &h.CustomerName, &h.OrderDate, &h.DeliveredAt, &h.Total, &status,
		&h.Delivery.Address, &h.Delivery.Phone, &h.Delivery.Notes, &lat, &lng, &h.PaymentID,
	)
	if err != nil {
		return models.OrderHistory{}, err
	}
	h.OrderDate = h.OrderDate.UTC()
	h.DeliveredAt = h.DeliveredAt.UTC()
	h.Delivery.Latitude = floatPtr(lat)
	h.Delivery.Longitude = floatPtr(lng)
	h.Status = models.OrderStatus(status)
	return h, nil
}

func (t *tx) InsertHistory(ctx context.Context, h models.OrderHistory) (int64, error) {
	query := `
	INSERT INTO order_history (
		source_order_id, customer_id, customer_name, order_date, delivered_at, total, status,
		delivery_address, delivery_phone, delivery_notes, latitude, longitude, payment_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id`

	var id int64
	err := t.tx.QueryRowContext(ctx, query,
		h.SourceOrderID, h.CustomerID, h.CustomerName, h.OrderDate, h.DeliveredAt, h.Total, string(h.Status),
		h.Delivery.Address, h.Delivery.Phone, h.Delivery.Notes,
		nullFloat(h.Delivery.Latitude), nullFloat(h.Delivery.Longitude), h.PaymentID,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperr.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert history: %w", err)
	}

	lineQuery := `
	INSERT INTO order_history_lines (history_id, item_id, item_name, quantity, price, variant, weight)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, l := range h.Lines {
		_, err := t.tx.ExecContext(ctx, lineQuery,
			id, nullInt(l.ItemID), l.ItemName, l.Quantity, l.Price, string(l.Variant), l.Weight)
		if err != nil {
			return 0, fmt.Errorf("failed to insert history line: %w", err)
		}
	}
	return id, nil
}

func (t *tx) historyLines(ctx context.Context, historyID int64) ([]models.HistoryLine, error) {
	rows, err := t.tx.QueryContext(ctx, `
	SELECT id, history_id, item_id, item_name, quantity, price, variant, weight
	FROM order_history_lines
	WHERE history_id = $1
	ORDER BY id`, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to select history lines: %w", err)
	}
	defer rows.Close()

	lines := []models.HistoryLine{}
	for rows.Next() {
		var (
			l       models.HistoryLine
			itemID  sql.NullInt64
			variant string
		)
		if err := rows.Scan(&l.ID, &l.HistoryID, &itemID, &l.ItemName, &l.Quantity, &l.Price, &variant, &l.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan history line: %w", err)
		}
		l.ItemID = intPtr(itemID)
		l.Variant = models.Variant(variant)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history lines: %w", err)
	}
	return lines, nil
}

func (t *tx) selectHistory(ctx context.Context, query string, args ...any) ([]models.OrderHistory, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	out := []models.OrderHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	for i := range out {
		out[i].Lines, err = t.historyLines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) HistoryByCustomer(ctx context.Context, customerID int64) ([]models.OrderHistory, error) {
	return t.selectHistory(ctx,
		`SELECT `+historyColumns+` FROM order_history WHERE customer_id = $1 ORDER BY id`, customerID)
}

func (t *tx) HistoryBySourceOrder(ctx context.Context, orderID int64) (models.OrderHistory, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM order_history WHERE source_order_id = $1`, orderID)
	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OrderHistory{}, apperr.ErrHistoryNotFound
	}
	if err != nil {
		return models.OrderHistory{}, fmt.Errorf("failed to select history: %w", err)
	}
	h.Lines, err = t.historyLines(ctx, h.ID)
	if err != nil {
		return models.OrderHistory{}, err
	}
	return h, nil
}

func (t *tx) History(ctx context.Context) ([]models.OrderHistory, error) {
	return t.selectHistory(ctx, `SELECT `+historyColumns+` FROM order_history ORDER BY id`)
}

func (t *tx) CountHistoryLines(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_history_lines WHERE item_id = $1`, itemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history lines: %w", err)
	}
	return n, nil
}
