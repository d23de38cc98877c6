package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fulfillment-service/internal/apperr"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/stores"
	"fulfillment-service/pkg/ctxmanage"
	"fulfillment-service/pkg/logkey"
)

type Conf struct {
	store stores.Store
	now   func() time.Time
}

func NewConf(store stores.Store) (Conf, error) {
	if store == nil {
		return Conf{}, fmt.Errorf("store is nil")
	}
	return Conf{store: store, now: time.Now}, nil
}

// Archive writes the history snapshot of a delivered order and deletes the
// order, both through the caller's tx.
func Archive(ctx context.Context, tx stores.Tx, o models.Order, deliveredAt time.Time) (models.OrderHistory, error) {
	if !o.Status.IsDelivered() {
		return models.OrderHistory{}, apperr.Wrapf(apperr.ErrInvalidState, "order %d is %q, not delivered", o.ID, o.Status)
	}
	h := models.NewHistory(o, deliveredAt.UTC())
	id, err := tx.InsertHistory(ctx, h)
	if err != nil {
		return models.OrderHistory{}, fmt.Errorf("failed to insert order history: %w", err)
	}
	h.ID = id
	if err := tx.DeleteOrder(ctx, o.ID); err != nil {
		return models.OrderHistory{}, fmt.Errorf("failed to delete archived order: %w", err)
	}
	return h, nil
}

// ArchiveOrder archives one order in its own transaction.
func (c *Conf) ArchiveOrder(ctx context.Context, orderID int64) (models.OrderHistory, error) {
	var h models.OrderHistory
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		o, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		h, err = Archive(ctx, tx, o, c.now())
		return err
	})
	if err != nil {
		return models.OrderHistory{}, apperr.E("history.ArchiveOrder", err, orderID)
	}
	return h, nil
}

// BulkArchive archives every delivered order, each in its own transaction.
// A failing order does not stop the rest; all failures are joined.
func (c *Conf) BulkArchive(ctx context.Context) (int, error) {
	var delivered []models.Order
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		delivered, err = tx.Orders(ctx, models.StatusDelivered)
		return err
	})
	if err != nil {
		return 0, apperr.E("history.BulkArchive", err)
	}

	var errs []error
	archived := 0
	for _, o := range delivered {
		if _, err := c.ArchiveOrder(ctx, o.ID); err != nil {
			slog.ErrorContext(ctx, "failed to archive delivered order",
				slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
				slog.Int64(logkey.OrderID, o.ID), slog.String(logkey.ERROR, err.Error()))
			errs = append(errs, err)
			continue
		}
		archived++
	}
	return archived, errors.Join(errs...)
}

// IsItemReferenced reports whether any archived line points at the item.
func (c *Conf) IsItemReferenced(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		n, err = tx.CountHistoryLines(ctx, itemID)
		return err
	})
	if err != nil {
		return false, apperr.E("history.IsItemReferenced", err, itemID)
	}
	return n > 0, nil
}

func (c *Conf) ListByCustomer(ctx context.Context, customerID int64) ([]models.OrderHistory, error) {
	var out []models.OrderHistory
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = tx.HistoryByCustomer(ctx, customerID)
		return err
	})
	return out, apperr.E("history.ListByCustomer", err, customerID)
}

func (c *Conf) ListAll(ctx context.Context) ([]models.OrderHistory, error) {
	var out []models.OrderHistory
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		out, err = tx.History(ctx)
		return err
	})
	return out, apperr.E("history.ListAll", err)
}

func (c *Conf) BySourceOrder(ctx context.Context, orderID int64) (models.OrderHistory, error) {
	var h models.OrderHistory
	err := c.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		h, err = tx.HistoryBySourceOrder(ctx, orderID)
		return err
	})
	return h, apperr.E("history.BySourceOrder", err, orderID)
}
