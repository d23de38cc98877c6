package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Conf struct {
	store    stores.Store
	validate *validator.Validate
}

func NewConf(store stores.Store) (Conf, error) {
	if store == nil {
		return Conf{}, fmt.Errorf("store is nil")
	}
	return Conf{store: store, validate: validator.New()}, nil
}

// CheckAvailability fails when the item is switched off or the counter
// behind v holds fewer than qty units.
func CheckAvailability(item models.Item, qty int, v models.Variant) error {
	if !item.Available {
		return apperr.Wrapf(apperr.ErrItemUnavailable, "%s", item)
	}
	if have := item.StockFor(v); have < qty {
		return apperr.Wrapf(apperr.ErrInsufficientStock, "%s: available %d, requested %d", item, have, qty)
	}
	return nil
}

// Deduct takes qty units from the variant's counter inside tx. Over-deduction
// is clamped at zero rather than rejected.
func Deduct(ctx context.Context, tx stores.ItemStore, itemID int64, qty int, v models.Variant) (models.Item, error) {
	if qty <= 0 {
		return models.Item{}, apperr.Wrapf(apperr.ErrValidationFailed, "quantity must be positive, got %d", qty)
	}
	item, err := tx.Item(ctx, itemID)
	if err != nil {
		return models.Item{}, err
	}
	applyDeduct(&item, qty, v)
	if err := tx.SaveItemStock(ctx, item); err != nil {
		return models.Item{}, fmt.Errorf("save stock for item %d: %w", itemID, err)
	}
	return item, nil
}

// Restore returns qty units to the variant's counter inside tx.
func Restore(ctx context.Context, tx stores.ItemStore, itemID int64, qty int, v models.Variant) (models.Item, error) {
	if qty <= 0 {
		return models.Item{}, apperr.Wrapf(apperr.ErrValidationFailed, "quantity must be positive, got %d", qty)
	}
	item, err := tx.Item(ctx, itemID)
	if err != nil {
		return models.Item{}, err
	}
	applyRestore(&item, qty, v)
	if err := tx.SaveItemStock(ctx, item); err != nil {
		return models.Item{}, fmt.Errorf("save stock for item %d: %w", itemID, err)
	}
	return item, nil
}

func applyDeduct(item *models.Item, qty int, v models.Variant) {
	if v.IsEggless() {
		item.EgglessStock = max(item.EgglessStock-qty, 0)
	} else {
		item.RegularStock = max(item.RegularStock-qty, 0)
	}
	if item.Exhausted() {
		item.Available = false
	}
}

func applyRestore(item *models.Item, qty int, v models.Variant) {
	if v.IsEggless() {
		item.EgglessStock += qty
	} else {
		item.RegularStock += qty
	}
	if item.StockFor(v) > 0 {
		item.Available = true
	}
}

func (c *Conf) Deduct(ctx context.Context, itemID int64, qty int, v models.Variant) (models.Item, error) {
	var item models.Item
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		item, err = Deduct(ctx, tx, itemID, qty, v)
		return err
	})
	return item, apperr.E("inventory.Deduct", err, itemID)
}

func (c *Conf) Restore(ctx context.Context, itemID int64, qty int, v models.Variant) (models.Item, error) {
	var item models.Item
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		item, err = Restore(ctx, tx, itemID, qty, v)
		return err
	})
	return item, apperr.E("inventory.Restore", err, itemID)
}

func (c *Conf) Check(ctx context.Context, itemID int64, qty int, v models.Variant) error {
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		return CheckAvailability(item, qty, v)
	})
	return apperr.E("inventory.Check", err, itemID)
}

func (c *Conf) Item(ctx context.Context, itemID int64) (models.Item, error) {
	var item models.Item
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		item, err = tx.Item(ctx, itemID)
		return err
	})
	return item, apperr.E("inventory.Item", err, itemID)
}

type NewItem struct {
	Name         string                     `json:"name" validate:"required"`
	Price        decimal.Decimal            `json:"price"`
	WeightPrices map[string]decimal.Decimal `json:"weight_prices"`
	RegularStock int                        `json:"regular_stock" validate:"gte=0"`
	EgglessStock int                        `json:"eggless_stock" validate:"gte=0"`
	Available    bool                       `json:"available"`
}

// AddItem seeds a catalog item. An item without stock is never stored as available.
func (c *Conf) AddItem(ctx context.Context, ni NewItem) (models.Item, error) {
	if err := c.validate.StructCtx(ctx, ni); err != nil {
		return models.Item{}, apperr.E("inventory.AddItem", apperr.Wrapf(apperr.ErrValidationFailed, "%v", err))
	}
	if !models.ValidPrice(ni.Price) {
		return models.Item{}, apperr.E("inventory.AddItem", apperr.Wrapf(apperr.ErrValidationFailed, "price must be a non-negative amount with at most 2 decimals"))
	}
	for w, p := range ni.WeightPrices {
		if !models.ValidPrice(p) {
			return models.Item{}, apperr.E("inventory.AddItem", apperr.Wrapf(apperr.ErrValidationFailed, "price for weight %s must be a non-negative amount with at most 2 decimals", w))
		}
	}
	item := models.Item{
		Name:         ni.Name,
		Price:        ni.Price,
		WeightPrices: normaliseWeights(ni.WeightPrices),
		RegularStock: ni.RegularStock,
		EgglessStock: ni.EgglessStock,
	}
	item.Available = ni.Available && !item.Exhausted()

	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		id, err := tx.CreateItem(ctx, item)
		item.ID = id
		return err
	})
	if err != nil {
		return models.Item{}, apperr.E("inventory.AddItem", err)
	}
	return item, nil
}

func normaliseWeights(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		if w, err := decimal.NewFromString(k); err == nil {
			k = models.WeightKey(w)
		}
		out[k] = v
	}
	return out
}

// RemoveItem deletes a catalog item. Items still on an undelivered order are
// kept. Cart lines for the item are dropped and order and history lines keep
// the item name with a null reference.
func (c *Conf) RemoveItem(ctx context.Context, itemID int64) error {
	const op = "inventory.RemoveItem"
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		if _, err := tx.Item(ctx, itemID); err != nil {
			return err
		}
		active, err := tx.CountActiveOrderLines(ctx, itemID)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperr.Wrapf(apperr.ErrInvalidState, "item is on %d active order lines", active)
		}
		archived, err := tx.CountHistoryLines(ctx, itemID)
		if err != nil {
			return err
		}
		if archived > 0 {
			slog.InfoContext(ctx, "deleting item referenced by order history",
				slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
				slog.Int64(logkey.ItemID, itemID), slog.Int("HistoryLines", archived))
		}
		return tx.DeleteItem(ctx, itemID)
	})
	return apperr.E(op, err, itemID)
}
