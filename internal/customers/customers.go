package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"

	"github.com/go-playground/validator/v10"
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

type NewCustomer struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// Register creates the customer and their empty cart in one transaction.
func (c *Conf) Register(ctx context.Context, nc NewCustomer) (models.Customer, error) {
	const op = "customers.Register"
	if err := c.validate.StructCtx(ctx, nc); err != nil {
		return models.Customer{}, apperr.E(op, apperr.Wrapf(apperr.ErrValidationFailed, "%v", err))
	}
	cust := models.Customer{Name: nc.Name, Email: nc.Email, CreatedAt: c.now().UTC()}
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		id, err := tx.CreateCustomer(ctx, cust)
		if err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.Wrapf(apperr.ErrValidationFailed, "email %s is already registered", nc.Email)
			}
			return fmt.Errorf("failed to create customer: %w", err)
		}
		cust.ID = id
		if _, err := tx.CreateCart(ctx, id); err != nil {
			return fmt.Errorf("failed to create cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Customer{}, apperr.E(op, err)
	}
	return cust, nil
}

func (c *Conf) Get(ctx context.Context, id int64) (models.Customer, error) {
	var cust models.Customer
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		cust, err = tx.Customer(ctx, id)
		return err
	})
	if err != nil {
		return models.Customer{}, apperr.E("customers.Get", err, id)
	}
	return cust, nil
}

// Delete removes the customer with their cart and live orders. Archived
// history rows carry their own copy of the customer and stay.
func (c *Conf) Delete(ctx context.Context, id int64) error {
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		return tx.DeleteCustomer(ctx, id)
	})
	return apperr.E("customers.Delete", err, id)
}
