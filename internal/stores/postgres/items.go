package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
)

func (t *tx) Item(ctx context.Context, id int64) (models.Item, error) {
	query := `
	SELECT id, name, price, weight_prices, regular_stock, eggless_stock, available
	FROM items
	WHERE id = $1
	FOR UPDATE`

	var (
		it      models.Item
		weights []byte
	)
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&it.ID, &it.Name, &it.Price, &weights, &it.RegularStock, &it.EgglessStock, &it.Available,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, apperr.ErrItemNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to select item: %w", err)
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &it.WeightPrices); err != nil {
			return models.Item{}, fmt.Errorf("failed to decode weight prices: %w", err)
		}
	}
	return it, nil
}

func encodeWeights(w map[string]decimal.Decimal) (any, error) {
	if len(w) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode weight prices: %w", err)
	}
	return string(b), nil
}

func (t *tx) CreateItem(ctx context.Context, item models.Item) (int64, error) {
	weights, err := encodeWeights(item.WeightPrices)
	if err != nil {
		return 0, err
	}
	query := `
	INSERT INTO items (name, price, weight_prices, regular_stock, eggless_stock, available)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	var id int64
	err = t.tx.QueryRowContext(ctx, query,
		item.Name, item.Price, weights, item.RegularStock, item.EgglessStock, item.Available,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}
	return id, nil
}

func (t *tx) SaveItemStock(ctx context.Context, item models.Item) error {
	query := `
	UPDATE items
	SET regular_stock = $1, eggless_stock = $2, available = $3
	WHERE id = $4`

	res, err := t.tx.ExecContext(ctx, query, item.RegularStock, item.EgglessStock, item.Available, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item stock: %w", err)
	}
	return expectRow(res, apperr.ErrItemNotFound)
}

// DeleteItem relies on the foreign keys: cart lines cascade, order and
// history lines are set to NULL.
func (t *tx) DeleteItem(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return expectRow(res, apperr.ErrItemNotFound)
}

func (t *tx) CountActiveOrderLines(ctx context.Context, itemID int64) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM order_lines ol
	JOIN orders o ON o.id = ol.order_id
	WHERE ol.item_id = $1 AND o.status <> $2`

	var n int
	if err := t.tx.QueryRowContext(ctx, query, itemID, string(models.StatusDelivered)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count order lines: %w", err)
	}
	return n, nil
}
