package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/inventory"
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

type AddLineRequest struct {
	ItemID   int64          `json:"item_id" validate:"required,gt=0"`
	Quantity int            `json:"quantity" validate:"required,gt=0"`
	Variant  models.Variant `json:"variant"`
	// Weight in kg, for goods sold by weight.
	Weight decimal.NullDecimal `json:"weight"`
	// PinnedPrice is the unit price the storefront showed when the line was added.
	PinnedPrice decimal.NullDecimal `json:"pinned_price"`
}

func (r AddLineRequest) check() error {
	if r.Weight.Valid && !r.Weight.Decimal.IsPositive() {
		return apperr.Wrapf(apperr.ErrValidationFailed, "weight must be positive")
	}
	if r.PinnedPrice.Valid && !models.ValidPrice(r.PinnedPrice.Decimal) {
		return apperr.Wrapf(apperr.ErrValidationFailed, "pinned price must be a non-negative amount with at most 2 decimals")
	}
	return nil
}

// Load returns the customer's cart inside tx. Every registered customer has
// a cart, so a missing one is logged as an integrity fault.
func Load(ctx context.Context, tx stores.CartStore, customerID int64) (models.Cart, error) {
	c, err := tx.CartByCustomer(ctx, customerID)
	if errors.Is(err, apperr.ErrCartNotFound) {
		slog.ErrorContext(ctx, "no cart for customer",
			slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
			slog.Int64(logkey.CustomerID, customerID))
	}
	return c, err
}

// AddLine merges the request into the line for the same item, variant and
// weight, or appends a new line. Availability is checked against the quantity
// the line would hold afterwards.
func (c *Conf) AddLine(ctx context.Context, customerID int64, req AddLineRequest) (models.Cart, error) {
	const op = "cart.AddLine"
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return models.Cart{}, apperr.E(op, apperr.Wrapf(apperr.ErrValidationFailed, "%v", err), customerID)
	}
	if err := req.check(); err != nil {
		return models.Cart{}, apperr.E(op, err, customerID)
	}
	variant, err := models.ParseVariant(string(req.Variant))
	if err != nil {
		return models.Cart{}, apperr.E(op, err, customerID)
	}
	req.Variant = variant

	var out models.Cart
	err = c.store.WithTx(ctx, func(tx stores.Tx) error {
		cart, err := Load(ctx, tx, customerID)
		if err != nil {
			return err
		}
		item, err := tx.Item(ctx, req.ItemID)
		if err != nil {
			return err
		}

		idx, found := cart.FindLine(req.ItemID, req.Variant, req.Weight)
		prospective := req.Quantity
		if found {
			prospective += cart.Lines[idx].Quantity
		}
		if err := inventory.CheckAvailability(item, prospective, req.Variant); err != nil {
			return err
		}

		if found {
			line := cart.Lines[idx]
			line.Quantity = prospective
			if req.PinnedPrice.Valid {
				line.PinnedPrice = req.PinnedPrice
			}
			if err := tx.UpdateCartLine(ctx, line); err != nil {
				return fmt.Errorf("failed to update cart line: %w", err)
			}
		} else {
			_, err := tx.InsertCartLine(ctx, models.CartLine{
				CartID:      cart.ID,
				ItemID:      req.ItemID,
				Quantity:    req.Quantity,
				Variant:     req.Variant,
				Weight:      req.Weight,
				PinnedPrice: req.PinnedPrice,
			})
			if err != nil {
				return fmt.Errorf("failed to add cart line: %w", err)
			}
		}

		out, err = tx.CartByCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return models.Cart{}, apperr.E(op, err, customerID)
	}
	return out, nil
}

// ownedLine loads lineID and checks it sits in the customer's cart.
func ownedLine(ctx context.Context, tx stores.Tx, customerID, lineID int64) (models.Cart, models.CartLine, error) {
	cart, err := Load(ctx, tx, customerID)
	if err != nil {
		return models.Cart{}, models.CartLine{}, err
	}
	line, err := tx.CartLine(ctx, lineID)
	if err != nil {
		return models.Cart{}, models.CartLine{}, err
	}
	if line.CartID != cart.ID {
		return models.Cart{}, models.CartLine{}, apperr.ErrUnauthorized
	}
	return cart, line, nil
}

// UpdateLine overwrites the line quantity. A quantity of zero or less removes the line.
func (c *Conf) UpdateLine(ctx context.Context, customerID, lineID int64, qty int) (models.Cart, error) {
	const op = "cart.UpdateLine"
	var out models.Cart
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		cart, line, err := ownedLine(ctx, tx, customerID, lineID)
		if err != nil {
			return err
		}
		if qty <= 0 {
			cart.Detach(lineID)
			out = cart
			return tx.DeleteCartLine(ctx, lineID)
		}

		item, err := tx.Item(ctx, line.ItemID)
		if err != nil {
			return err
		}
		if err := inventory.CheckAvailability(item, qty, line.Variant); err != nil {
			return err
		}
		line.Quantity = qty
		if err := tx.UpdateCartLine(ctx, line); err != nil {
			return fmt.Errorf("failed to update cart line: %w", err)
		}
		out, err = tx.CartByCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return models.Cart{}, apperr.E(op, err, lineID)
	}
	return out, nil
}

// RemoveLine detaches the line from the loaded cart before deleting its row,
// so the returned aggregate never holds the removed line.
func (c *Conf) RemoveLine(ctx context.Context, customerID, lineID int64) (models.Cart, error) {
	var out models.Cart
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		cart, _, err := ownedLine(ctx, tx, customerID, lineID)
		if err != nil {
			return err
		}
		cart.Detach(lineID)
		if err := tx.DeleteCartLine(ctx, lineID); err != nil {
			return fmt.Errorf("failed to delete cart line: %w", err)
		}
		out = cart
		return nil
	})
	if err != nil {
		return models.Cart{}, apperr.E("cart.RemoveLine", err, lineID)
	}
	return out, nil
}

func (c *Conf) Clear(ctx context.Context, customerID int64) error {
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		cart, err := Load(ctx, tx, customerID)
		if err != nil {
			return err
		}
		return tx.ClearCart(ctx, cart.ID)
	})
	return apperr.E("cart.Clear", err, customerID)
}

func (c *Conf) Get(ctx context.Context, customerID int64) (models.Cart, error) {
	var out models.Cart
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = Load(ctx, tx, customerID)
		return err
	})
	if err != nil {
		return models.Cart{}, apperr.E("cart.Get", err, customerID)
	}
	return out, nil
}
